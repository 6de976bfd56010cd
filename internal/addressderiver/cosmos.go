package addressderiver

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for the Cosmos SDK address algorithm
)

// Cosmos renders a compressed secp256k1 public key as a Cosmos SDK
// Bech32 address: SHA256 -> RIPEMD160 -> bech32(hrp, hash160), the
// standard Cosmos SDK derivation. internal/services/address/cosmos.go
// (teacher) computed the same hash160 but then hand-rolled a
// non-standard hex "bech32-like" encoding with a TODO acknowledging it
// wasn't real Bech32; this uses the real
// github.com/btcsuite/btcd/btcutil/bech32 codec (already a transitive
// dependency via btcutil) so addresses are wallet-compatible.
func Cosmos(pubCompressed []byte, hrp string) (string, error) {
	pub, err := btcec.ParsePubKey(pubCompressed)
	if err != nil {
		return "", fmt.Errorf("addressderiver: parsing public key: %w", err)
	}
	sha := sha256.Sum256(pub.SerializeCompressed())
	r := ripemd160.New()
	r.Write(sha[:])
	hash160 := r.Sum(nil)

	converted, err := bech32.ConvertBits(hash160, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("addressderiver: converting bits: %w", err)
	}
	addr, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", fmt.Errorf("addressderiver: bech32 encoding: %w", err)
	}
	return addr, nil
}
