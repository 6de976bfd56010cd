package cosmwasm

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

type mockRPCClient struct {
	responses map[string]interface{}
	errs      map[string]error
}

func newMockRPCClient() *mockRPCClient {
	return &mockRPCClient{responses: make(map[string]interface{}), errs: make(map[string]error)}
}

func (m *mockRPCClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err, ok := m.errs[method]; ok {
		return nil, err
	}
	if response, ok := m.responses[method]; ok {
		return json.Marshal(response)
	}
	return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, "mock RPC method not configured: "+method, nil, nil)
}
func (m *mockRPCClient) CallBatch(ctx context.Context, requests []rpc.RPCRequest) ([]json.RawMessage, error) {
	return nil, nil
}
func (m *mockRPCClient) Close() error { return nil }
func (m *mockRPCClient) set(method string, response interface{}) { m.responses[method] = response }
func (m *mockRPCClient) setErr(method string, err error)         { m.errs[method] = err }

func testSigner(t *testing.T) signer.Signer {
	t.Helper()
	s, err := signer.NewLocal(make([]byte, 32))
	require.NoError(t, err)
	return s
}

func TestAdapterDeriveAddressIsBech32(t *testing.T) {
	a := NewAdapter(newMockRPCClient(), nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", testSigner(t))

	addr, err := a.DeriveAddress(context.Background(), domain.Destination{})
	require.NoError(t, err)
	require.Contains(t, addr, "osmo1")
}

func TestAdapterObserveDepositsReturnsEmpty(t *testing.T) {
	a := NewAdapter(newMockRPCClient(), nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", testSigner(t))

	reqs, err := a.ObserveDeposits(context.Background())
	require.NoError(t, err)
	require.Empty(t, reqs)
}

func TestAdapterBuildReleaseTxRejectsMissingReceiver(t *testing.T) {
	a := NewAdapter(newMockRPCClient(), nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", testSigner(t))

	req := &chainadapter.ReleaseRequest{
		TicketID:    "t1",
		Destination: domain.Destination{Receiver: ""},
		Amount:      big.NewInt(1000),
	}
	_, err := a.BuildReleaseTx(context.Background(), req, nil)
	require.Error(t, err)
}

func TestAdapterBuildReleaseTxProducesMintTokenMsg(t *testing.T) {
	a := NewAdapter(newMockRPCClient(), nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", testSigner(t))

	req := &chainadapter.ReleaseRequest{
		TicketID:    "t1",
		Destination: domain.Destination{Receiver: "osmo1receiver", Token: "btc.omnity"},
		Amount:      big.NewInt(1000),
	}
	unsigned, err := a.BuildReleaseTx(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, a.chainID, unsigned.ChainID)
	require.Contains(t, string(unsigned.SigningPayload), "mint_token")
	require.Contains(t, string(unsigned.SigningPayload), "osmo1receiver")
}

func TestAdapterConfirmTxClassifiesFinalized(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("tx", map[string]interface{}{
		"height":    "100",
		"tx_result": map[string]interface{}{"code": 0},
	})

	a := NewAdapter(rpcClient, nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", testSigner(t))

	status, err := a.ConfirmTx(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, chainadapter.TxStatusFinalized, status.Status)
}

func TestAdapterConfirmTxPendingWhenNotFound(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.setErr("tx", chainadapter.NewRetryableError(chainadapter.ErrCodeTxNotFound, "not found", nil, nil))

	a := NewAdapter(rpcClient, nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", testSigner(t))

	status, err := a.ConfirmTx(context.Background(), "abc123")
	require.NoError(t, err)
	require.Equal(t, chainadapter.TxStatusPending, status.Status)
}

func TestSignAndVerifySignatureRoundTrip(t *testing.T) {
	sign := testSigner(t)
	a := NewAdapter(newMockRPCClient(), nil, "CosmWasm-osmosis", "osmosis-1", "osmo", "osmo1contract", sign)

	req := &chainadapter.ReleaseRequest{
		TicketID:    "t1",
		Destination: domain.Destination{Receiver: "osmo1receiver", Token: "btc.omnity"},
		Amount:      big.NewInt(1000),
	}
	unsigned, err := a.BuildReleaseTx(context.Background(), req, nil)
	require.NoError(t, err)

	signed, err := a.Sign(context.Background(), unsigned, sign)
	require.NoError(t, err)
	require.NotEmpty(t, signed.TxHash)
	require.NotEmpty(t, signed.Signature)
}
