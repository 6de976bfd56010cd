// Package signer abstracts threshold-style key derivation and signing so
// that the rest of the bridge never touches key material directly: it
// only ever calls Sign(hash, path) or PublicKey(path). Grounded on the
// teacher's KeySource/Signer split (src/chainadapter/keysource.go,
// signer.go) and its BIP32 derivation helper
// (internal/services/hdkey/service.go), generalized from fixed BIP44
// paths to the bridge's arbitrary-byte-string derivation paths
// (internal/addressderiver), the same generalization the production
// Hub's threshold-ECDSA/EdDSA API makes over plain BIP32.
package signer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// KeySourceType distinguishes where key material ultimately lives.
type KeySourceType string

const (
	KeySourceLocal  KeySourceType = "local"  // BIP39-seeded, in-process (dev/test only)
	KeySourceRemote KeySourceType = "remote" // a threshold-signing service over RPC
)

// KeySource exposes public keys for a derivation path without exposing
// private material.
type KeySource interface {
	Type() KeySourceType
	PublicKey(ctx context.Context, path []byte) ([]byte, error)
}

// Signer signs a digest under a derivation path. Implementations must
// never log or return the private key itself.
type Signer interface {
	KeySource
	Sign(ctx context.Context, digest []byte, path []byte) ([]byte, error)

	// SignSchnorr signs digest with a BIP340 Schnorr signature over the
	// same derived key Sign uses. Needed for Bitcoin taproot
	// script-path spends (a BRC-20/Runes inscription reveal's tapscript
	// sighash), which cannot be satisfied by Sign's recoverable-ECDSA
	// format.
	SignSchnorr(ctx context.Context, digest []byte, path []byte) ([]byte, error)
}

// pathToIndices turns an arbitrary-length derivation path (as built by
// internal/addressderiver) into a fixed sequence of hardened BIP32
// indices, so a byte-string path scheme can still ride on
// btcutil/hdkeychain's uint32-indexed derivation. SHA-256 gives 8
// uint32 words, which is ample depth for a one-shot, never-reused
// per-destination key.
func pathToIndices(path []byte) [8]uint32 {
	h := sha256.Sum256(path)
	var idx [8]uint32
	for i := range idx {
		idx[i] = hdkeychain.HardenedKeyStart + binary.BigEndian.Uint32(h[i*4:i*4+4])
	}
	return idx
}

// Local is a Signer backed by a single in-process BIP32 master key
// derived from a BIP39 seed. Intended for development and integration
// tests; production deployments use Remote against a real threshold-key
// service, since Local holds the private key in process memory.
type Local struct {
	master *hdkeychain.ExtendedKey
}

// NewLocal builds a Local signer from a BIP39 seed of 16 to 64 bytes
// (NewLocalFromMnemonic derives one from a GenerateMnemonic phrase).
func NewLocal(seed []byte) (*Local, error) {
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("signer: deriving master key: %w", err)
	}
	return &Local{master: master}, nil
}

func (l *Local) Type() KeySourceType { return KeySourceLocal }

func (l *Local) derive(path []byte) (*hdkeychain.ExtendedKey, error) {
	key := l.master
	for _, idx := range pathToIndices(path) {
		child, err := key.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("signer: deriving child at index %d: %w", idx, err)
		}
		key = child
	}
	return key, nil
}

func (l *Local) PublicKey(_ context.Context, path []byte) ([]byte, error) {
	key, err := l.derive(path)
	if err != nil {
		return nil, err
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("signer: reading public key: %w", err)
	}
	return pub.SerializeCompressed(), nil
}

func (l *Local) Sign(_ context.Context, digest []byte, path []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("signer: digest must be 32 bytes, got %d", len(digest))
	}
	key, err := l.derive(path)
	if err != nil {
		return nil, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("signer: reading private key: %w", err)
	}
	sig, err := signECDSA(priv, digest)
	if err != nil {
		return nil, fmt.Errorf("signer: signing: %w", err)
	}
	return sig, nil
}

func (l *Local) SignSchnorr(_ context.Context, digest []byte, path []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("signer: digest must be 32 bytes, got %d", len(digest))
	}
	key, err := l.derive(path)
	if err != nil {
		return nil, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("signer: reading private key: %w", err)
	}
	sig, err := signSchnorr(priv, digest)
	if err != nil {
		return nil, fmt.Errorf("signer: signing: %w", err)
	}
	return sig, nil
}

var _ Signer = (*Local)(nil)
