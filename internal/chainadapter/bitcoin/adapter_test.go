// Package bitcoin - adapter tests
package bitcoin

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/signer"
)

// mockRPCClient implements rpc.RPCClient for testing.
type mockRPCClient struct {
	responses map[string]interface{}
}

func newMockRPCClient() *mockRPCClient {
	return &mockRPCClient{responses: make(map[string]interface{})}
}

func (m *mockRPCClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if response, ok := m.responses[method]; ok {
		return json.Marshal(response)
	}
	return nil, chainadapter.NewRetryableError(
		chainadapter.ErrCodeRPCUnavailable,
		"mock RPC method not configured: "+method,
		nil,
		nil,
	)
}

func (m *mockRPCClient) CallBatch(ctx context.Context, requests []rpc.RPCRequest) ([]json.RawMessage, error) {
	return nil, nil
}

func (m *mockRPCClient) Close() error { return nil }

func (m *mockRPCClient) set(method string, response interface{}) {
	m.responses[method] = response
}

func testSigner(t *testing.T) signer.Signer {
	t.Helper()
	s, err := signer.NewLocal(make([]byte, 32))
	require.NoError(t, err)
	return s
}

func TestAdapterDeriveAddressIsBech32(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, "mainnet", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", testSigner(t))
	require.NoError(t, err)

	addr, err := a.DeriveAddress(context.Background(), domain.Destination{TargetChainID: "eICP", Receiver: "0xabc", Token: "BTC"})
	require.NoError(t, err)
	require.Contains(t, addr, "bc1")
}

func TestAdapterBuildReleaseTxRejectsEmptyUtxoSet(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, "mainnet", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", testSigner(t))
	require.NoError(t, err)

	req := &chainadapter.ReleaseRequest{
		TicketID:    "t1",
		Destination: domain.Destination{Receiver: "bc1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qccfmv3"},
		Amount:      big.NewInt(10000),
	}
	_, err = a.BuildReleaseTx(context.Background(), req, nil)
	require.Error(t, err)
}

func TestAdapterObserveDepositsMapsUtxosToTicketRequests(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("listunspent", []ListUnspentResult{
		{TxID: "aa", Vout: 0, Address: "bc1q...", Amount: 0.001, Spendable: true},
	})

	a, err := NewAdapter(rpcClient, nil, "mainnet", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", testSigner(t))
	require.NoError(t, err)

	reqs, err := a.ObserveDeposits(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, "aa:0", reqs[0].Txid)
	require.Equal(t, uint64(100000), reqs[0].NewUtxos[0].Value)
}

func TestAdapterConfirmTxClassifiesStatus(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("getrawtransaction", RawTransactionResult{Txid: "aa", Confirmations: 7, BlockHash: "bh"})
	rpcClient.set("getblock", BlockResult{Hash: "bh", Height: 100})

	a, err := NewAdapter(rpcClient, nil, "mainnet", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", testSigner(t))
	require.NoError(t, err)

	status, err := a.ConfirmTx(context.Background(), "aa")
	require.NoError(t, err)
	require.Equal(t, chainadapter.TxStatusFinalized, status.Status)
	require.NotNil(t, status.BlockNumber)
	require.Equal(t, uint64(100), *status.BlockNumber)
}

var _ storage.TransactionStateStore = (*storage.MemoryTxStore)(nil)
