package evm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
)

func TestBroadcastIsIdempotentViaTxStore(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("eth_sendRawTransaction", "0xdeadbeef")

	store := storage.NewMemoryTxStore()
	a, err := NewAdapter(rpcClient, store, 1, "0x0000000000000000000000000000000000dEaD", testSigner(t), nil)
	require.NoError(t, err)

	signed := &chainadapter.SignedTransaction{
		SerializedTx: []byte{0xde, 0xad, 0xbe, 0xef},
		TxHash:       "0xdeadbeef",
	}

	receipt1, err := a.Broadcast(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, "0xdeadbeef", receipt1.TxHash)

	receipt2, err := a.Broadcast(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, receipt1.TxHash, receipt2.TxHash)
}

func TestBroadcastRejectsEmptySignedTx(t *testing.T) {
	a, err := NewAdapter(newMockRPCClient(), nil, 1, "0x0000000000000000000000000000000000dEaD", testSigner(t), nil)
	require.NoError(t, err)

	_, err = a.Broadcast(context.Background(), &chainadapter.SignedTransaction{})
	require.Error(t, err)
}
