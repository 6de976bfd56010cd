package bitcoin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
)

func TestBroadcastIsIdempotentViaTxStore(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("sendrawtransaction", "deadbeef")

	store := storage.NewMemoryTxStore()
	a, err := NewAdapter(rpcClient, store, "mainnet", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", testSigner(t))
	require.NoError(t, err)

	signed := &chainadapter.SignedTransaction{
		SerializedTx: []byte{0xde, 0xad, 0xbe, 0xef},
		TxHash:       "deadbeef",
	}

	receipt1, err := a.Broadcast(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, "deadbeef", receipt1.TxHash)

	receipt2, err := a.Broadcast(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, receipt1.TxHash, receipt2.TxHash)
}

func TestBroadcastRejectsEmptySignedTx(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, "mainnet", "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", testSigner(t))
	require.NoError(t, err)

	_, err = a.Broadcast(context.Background(), &chainadapter.SignedTransaction{})
	require.Error(t, err)
}
