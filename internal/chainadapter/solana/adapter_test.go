package solana

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
}

func newMockRPCClient() *mockRPCClient { return &mockRPCClient{responses: make(map[string]interface{})} }

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
func (m *mockRPCClient) set(method string, response interface{}) { m.responses[method] = response }

func testSigner(t *testing.T) signer.Signer {
	t.Helper()
	s, err := signer.NewLocal(make([]byte, 32))
	require.NoError(t, err)
	return s
}

func TestAdapterDeriveAddressIsBase58(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, testSigner(t), nil)
	require.NoError(t, err)

	addr, err := a.DeriveAddress(context.Background(), domain.Destination{})
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	require.NotContains(t, addr, "0x")
}

func TestAdapterObserveDepositsReturnsEmpty(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, testSigner(t), nil)
	require.NoError(t, err)

	reqs, err := a.ObserveDeposits(context.Background())
	require.NoError(t, err)
	require.Empty(t, reqs)
}

func TestAdapterBuildReleaseTxRejectsInvalidReceiver(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("getLatestBlockhash", map[string]interface{}{
		"value": map[string]interface{}{"blockhash": "11111111111111111111111111111111", "lastValidBlockHeight": 100},
	})

	a, err := NewAdapter(rpcClient, nil, testSigner(t), nil)
	require.NoError(t, err)

	req := &chainadapter.ReleaseRequest{
		TicketID:    "t1",
		Destination: domain.Destination{Receiver: "not-a-solana-address"},
		Amount:      big.NewInt(1000),
	}
	_, err = a.BuildReleaseTx(context.Background(), req, nil)
	require.Error(t, err)
}

func TestAdapterConfirmTxClassifiesFinalized(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("getSignatureStatuses", map[string]interface{}{
		"value": []interface{}{
			map[string]interface{}{"confirmationStatus": "finalized", "slot": 100},
		},
	})

	a, err := NewAdapter(rpcClient, nil, testSigner(t), nil)
	require.NoError(t, err)

	status, err := a.ConfirmTx(context.Background(), "sig123")
	require.NoError(t, err)
	require.Equal(t, chainadapter.TxStatusFinalized, status.Status)
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	var seed [32]byte
	copy(seed[:], []byte("01234567890123456789012345678901"))

	msg := []byte("solana release message")
	sig := signEd25519(seed, msg)
	pub := publicKeyFromSeed(seed)

	ok, err := VerifySignature(msg, sig, pub)
	require.NoError(t, err)
	require.True(t, ok)
}
