// Package evm - signature verification and transaction hashing.
package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VerifySignature verifies a 65-byte recoverable secp256k1 signature
// (r || s || v, v in {0,1}) against hash and the expected signer
// address. This is the format internal/signer.Signer.Sign produces,
// rather than the EIP-155-adjusted v the teacher's EthereumSigner.Sign
// emitted — recovery does not need the chain id, so the adjustment was
// pure overhead once signing moved behind the threshold Signer.
func VerifySignature(hash []byte, signature []byte, address string) (bool, error) {
	if len(hash) != 32 {
		return false, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	if len(signature) != 65 {
		return false, fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	pubKeyBytes, err := crypto.Ecrecover(hash, signature)
	if err != nil {
		return false, fmt.Errorf("public key recovery failed: %w", err)
	}
	pubKey, err := crypto.UnmarshalPubkey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}

	recoveredAddr := crypto.PubkeyToAddress(*pubKey)
	expectedAddr := common.HexToAddress(address)
	return recoveredAddr == expectedAddr, nil
}

// ComputeTransactionHash computes the Keccak256 hash of an RLP-encoded
// transaction, used to derive the transaction id from a serialized
// payload.
func ComputeTransactionHash(rlpEncodedTx []byte) string {
	return crypto.Keccak256Hash(rlpEncodedTx).Hex()
}
