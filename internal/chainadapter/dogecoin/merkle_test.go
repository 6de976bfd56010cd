package dogecoin

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/merkleproof"
)

func TestVerifyDepositProofAcceptsValidPath(t *testing.T) {
	leaf := sha256.Sum256([]byte("txid-bytes"))
	sibling := sha256.Sum256([]byte("sibling-bytes"))

	combined := append(append([]byte{}, leaf[:]...), sibling[:]...)
	h1 := sha256.Sum256(combined)
	root := sha256.Sum256(h1[:])

	reverse := func(b [32]byte) string {
		out := make([]byte, 32)
		for i := 0; i < 32; i++ {
			out[i] = b[31-i]
		}
		return hex.EncodeToString(out)
	}

	proof := DepositProof{
		TxidHex:         reverse(leaf),
		Path:            []merkleproof.Step{{Hash: sibling, IsLeft: false}},
		BlockMerkleRoot: reverse(root),
	}

	ok, err := VerifyDepositProof(proof)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyDepositProofRejectsWrongRoot(t *testing.T) {
	leaf := sha256.Sum256([]byte("txid-bytes"))
	sibling := sha256.Sum256([]byte("sibling-bytes"))
	wrongRoot := sha256.Sum256([]byte("wrong-root"))

	reverse := func(b [32]byte) string {
		out := make([]byte, 32)
		for i := 0; i < 32; i++ {
			out[i] = b[31-i]
		}
		return hex.EncodeToString(out)
	}

	proof := DepositProof{
		TxidHex:         reverse(leaf),
		Path:            []merkleproof.Step{{Hash: sibling, IsLeft: false}},
		BlockMerkleRoot: reverse(wrongRoot),
	}

	ok, err := VerifyDepositProof(proof)
	require.NoError(t, err)
	require.False(t, ok)
}
