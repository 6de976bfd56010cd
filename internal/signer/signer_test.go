package signer

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func testSeed() []byte {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestLocalPublicKeyIsDeterministicPerPath(t *testing.T) {
	l, err := NewLocal(testSeed())
	require.NoError(t, err)

	path1 := []byte{0x01, 'e', 'I', 'C', 'P', 'a', 'b', 'c'}
	path2 := []byte{0x01, 'e', 'I', 'C', 'P', 'd', 'e', 'f'}

	pub1a, err := l.PublicKey(context.Background(), path1)
	require.NoError(t, err)
	pub1b, err := l.PublicKey(context.Background(), path1)
	require.NoError(t, err)
	require.Equal(t, pub1a, pub1b)
	require.Len(t, pub1a, 33)

	pub2, err := l.PublicKey(context.Background(), path2)
	require.NoError(t, err)
	require.NotEqual(t, pub1a, pub2)
}

func TestLocalSignRecoversToDerivedPublicKey(t *testing.T) {
	l, err := NewLocal(testSeed())
	require.NoError(t, err)

	path := []byte{0x01, 'B', 'i', 't', 'c', 'o', 'i', 'n'}
	digest := sha256.Sum256([]byte("release tx"))

	sig, err := l.Sign(context.Background(), digest[:], path)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	recoveredPub, err := ethcrypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	recoveredCompressed := ethcrypto.CompressPubkey(recoveredPub)

	wantPub, err := l.PublicKey(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, wantPub, recoveredCompressed)
}

func TestLocalSignSchnorrProducesVerifiableSignature(t *testing.T) {
	l, err := NewLocal(testSeed())
	require.NoError(t, err)

	path := []byte{0x01, 'B', 'i', 't', 'c', 'o', 'i', 'n', 'T', 'a', 'p'}
	digest := sha256.Sum256([]byte("reveal tx tapscript sighash"))

	sig, err := l.SignSchnorr(context.Background(), digest[:], path)
	require.NoError(t, err)
	require.Len(t, sig, 64)

	compressedPub, err := l.PublicKey(context.Background(), path)
	require.NoError(t, err)

	xOnlyPub, err := schnorr.ParsePubKey(compressedPub[1:])
	require.NoError(t, err)

	parsedSig, err := schnorr.ParseSignature(sig)
	require.NoError(t, err)
	require.True(t, parsedSig.Verify(digest[:], xOnlyPub))
}

func TestLocalSignSchnorrRejectsWrongDigestLength(t *testing.T) {
	l, err := NewLocal(testSeed())
	require.NoError(t, err)
	_, err = l.SignSchnorr(context.Background(), []byte("too short"), []byte{0x01})
	require.Error(t, err)
}

func TestLocalSignRejectsWrongDigestLength(t *testing.T) {
	l, err := NewLocal(testSeed())
	require.NoError(t, err)
	_, err = l.Sign(context.Background(), []byte("too short"), []byte{0x01})
	require.Error(t, err)
}

func TestRemoteImplementsSigner(t *testing.T) {
	var _ Signer = NewRemote("http://localhost:0")
}

func TestPathToIndicesIsStableAcrossCalls(t *testing.T) {
	p := []byte{0x01, 'x'}
	a := pathToIndices(p)
	b := pathToIndices(p)
	require.Equal(t, a, b)
	require.NotEqual(t, a, pathToIndices([]byte{0x01, 'y'}))
}
