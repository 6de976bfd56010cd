// Package bitcoin - Transaction signing utilities
package bitcoin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// VerifySignature verifies a compact (r||s, first 64 bytes of the
// threshold signer's recoverable output) signature against a payload
// and public key. Used by tests and by the release flow's own sanity
// check before broadcast.
func VerifySignature(payload []byte, signature []byte, pubKeyBytes []byte) (bool, error) {
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}
	if len(signature) < 64 {
		return false, fmt.Errorf("signature too short: %d bytes", len(signature))
	}

	var rsBytes [64]byte
	copy(rsBytes[:], signature[:64])
	sig := ecdsa.NewSignature(
		new(btcec.ModNScalar).SetByteSlice(rsBytes[:32]),
		new(btcec.ModNScalar).SetByteSlice(rsBytes[32:64]),
	)

	hash := sha256.Sum256(payload)
	txHash := sha256.Sum256(hash[:])
	return sig.Verify(txHash[:], pubKey), nil
}

// ComputeTransactionHash computes the Bitcoin transaction hash (double SHA256).
//
// This is used to generate the transaction ID (txid) from serialized transaction.
func ComputeTransactionHash(serializedTx []byte) string {
	hash := sha256.Sum256(serializedTx)
	txHash := sha256.Sum256(hash[:])

	reversed := make([]byte, 32)
	for i := 0; i < 32; i++ {
		reversed[i] = txHash[31-i]
	}

	return hex.EncodeToString(reversed)
}
