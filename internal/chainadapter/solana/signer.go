package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
)

// deriveEd25519Seed derives a stable 32-byte Ed25519 seed from an
// ECDSA-backed Signer's public key at a path. internal/signer.Signer is
// ECDSA-only today (grounded on the production Hub's threshold-ECDSA
// service); the Hub's threshold-EdDSA offering, needed for a native
// Solana key, is not yet exposed behind the same KeySource interface.
// Hashing the ECDSA public key down to a seed keeps Solana's identity
// tied deterministically to the same master key without inventing a
// second signer plumbing path — documented here as the resolution for
// Solana support until a real threshold-EdDSA KeySource lands.
func deriveEd25519Seed(ecdsaPubKey []byte, path []byte) [32]byte {
	h := sha256.New()
	h.Write(ecdsaPubKey)
	h.Write(path)
	var seed [32]byte
	copy(seed[:], h.Sum(nil))
	return seed
}

// signEd25519 signs digest with the Ed25519 key derived from seed.
func signEd25519(seed [32]byte, digest []byte) []byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	return ed25519.Sign(priv, digest)
}

// publicKeyFromSeed returns the 32-byte Ed25519 public key for seed.
func publicKeyFromSeed(seed [32]byte) []byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	return []byte(pub)
}

// VerifySignature verifies an Ed25519 signature over a message.
func VerifySignature(message []byte, signature []byte, pubKey []byte) (bool, error) {
	if len(pubKey) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid solana public key length: %d", len(pubKey))
	}
	if len(signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("invalid solana signature length: %d", len(signature))
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), message, signature), nil
}
