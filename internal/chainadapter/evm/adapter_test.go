package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
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
	return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, "mock RPC method not configured: "+method, nil, nil)
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

func TestAdapterDeriveAddressIsChecksummedHex(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, 1, "0x0000000000000000000000000000000000dEaD", testSigner(t), nil)
	require.NoError(t, err)

	addr, err := a.DeriveAddress(context.Background(), domain.Destination{TargetChainID: "bitcoin", Receiver: "bc1q...", Token: "ETH"})
	require.NoError(t, err)
	require.Len(t, addr, 42)
	require.Equal(t, "0x", addr[:2])
}

func TestAdapterBuildReleaseTxRejectsInvalidReceiver(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, 1, "0x0000000000000000000000000000000000dEaD", testSigner(t), nil)
	require.NoError(t, err)

	req := &chainadapter.ReleaseRequest{
		TicketID:    "t1",
		Destination: domain.Destination{Receiver: "not-an-address"},
		Amount:      big.NewInt(1000),
	}
	_, err = a.BuildReleaseTx(context.Background(), req, nil)
	require.Error(t, err)
}

func TestAdapterObserveDepositsParsesLogs(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("eth_getLogs", []LogEntry{
		{
			Address:         "0x0000000000000000000000000000000000dEaD",
			Topics:          []string{DepositEventTopic0, "0x000000000000000000000000abcabcabcabcabcabcabcabcabcabcabcabcab"},
			Data:            "0x00000000000000000000000000000000000000000000000000000000000003e8",
			TransactionHash: "0xdeadbeef",
			BlockNumber:     "0x64",
		},
	})

	a, err := NewAdapter(rpcClient, nil, 1, "0x0000000000000000000000000000000000dEaD", testSigner(t), nil)
	require.NoError(t, err)

	reqs, err := a.ObserveDeposits(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	require.Equal(t, "0xdeadbeef", reqs[0].Txid)
	require.Equal(t, "1000", reqs[0].Amount)
}

func TestAdapterConfirmTxClassifiesStatus(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("eth_getTransactionByHash", TransactionResult{Hash: "0xdeadbeef", BlockNumber: "0x64", BlockHash: "0xbh"})
	rpcClient.set("eth_getTransactionReceipt", ReceiptResult{Status: "0x1", BlockNumber: "0x64", BlockHash: "0xbh"})
	rpcClient.set("eth_blockNumber", "0x70")

	a, err := NewAdapter(rpcClient, nil, 1, "0x0000000000000000000000000000000000dEaD", testSigner(t), nil)
	require.NoError(t, err)

	status, err := a.ConfirmTx(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, chainadapter.TxStatusFinalized, status.Status)
}
