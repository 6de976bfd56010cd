package bitcoin

import (
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/require"
)

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	payload := []byte("release tx payload")
	h := sha256.Sum256(payload)
	txHash := sha256.Sum256(h[:])

	sig := ecdsa.Sign(priv, txHash[:])
	compact := make([]byte, 64)
	r := sig.R()
	s := sig.S()
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(compact[:32], rBytes[:])
	copy(compact[32:], sBytes[:])

	ok, err := VerifySignature(payload, compact, priv.PubKey().SerializeCompressed())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	other, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	payload := []byte("release tx payload")
	h := sha256.Sum256(payload)
	txHash := sha256.Sum256(h[:])
	sig := ecdsa.Sign(priv, txHash[:])

	compact := make([]byte, 64)
	r := sig.R()
	s := sig.S()
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(compact[:32], rBytes[:])
	copy(compact[32:], sBytes[:])

	ok, err := VerifySignature(payload, compact, other.PubKey().SerializeCompressed())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestComputeTransactionHashIsDeterministic(t *testing.T) {
	tx := []byte{0x01, 0x02, 0x03}
	require.Equal(t, ComputeTransactionHash(tx), ComputeTransactionHash(tx))
}
