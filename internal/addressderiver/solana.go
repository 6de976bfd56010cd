package addressderiver

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Solana renders a raw 32-byte Ed25519 public key as a base58 Solana
// address. Unlike Bitcoin/Dogecoin/Ethereum, Solana is a route, not a
// customs: this exists for the rare case of a settlement-side customs
// running on an Ed25519 chain (spec.md §4.9's scheme is curve-agnostic),
// grounded on internal/services/address/solana.go (teacher), corrected
// to take a real Ed25519 key rather than truncating a secp256k1 one.
func Solana(edPub []byte) (string, error) {
	if len(edPub) != 32 {
		return "", fmt.Errorf("addressderiver: solana public key must be 32 bytes, got %d", len(edPub))
	}
	return solana.PublicKeyFromBytes(edPub).String(), nil
}
