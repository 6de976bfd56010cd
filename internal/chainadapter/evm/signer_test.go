package evm

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestVerifySignatureAcceptsValidSignature(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("release tx payload"))
	sig, err := crypto.Sign(hash, priv)
	require.NoError(t, err)

	addr := crypto.PubkeyToAddress(priv.PublicKey).Hex()
	ok, err := VerifySignature(hash, sig, addr)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifySignatureRejectsWrongAddress(t *testing.T) {
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("release tx payload"))
	sig, err := crypto.Sign(hash, priv)
	require.NoError(t, err)

	otherAddr := crypto.PubkeyToAddress(other.PublicKey).Hex()
	ok, err := VerifySignature(hash, sig, otherAddr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestComputeTransactionHashIsDeterministic(t *testing.T) {
	tx := []byte{0x01, 0x02, 0x03}
	require.Equal(t, ComputeTransactionHash(tx), ComputeTransactionHash(tx))
}
