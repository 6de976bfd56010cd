package addressderiver

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Ethereum renders a compressed secp256k1 public key as an EIP-55
// checksummed address: Keccak256(uncompressed_pubkey[1:])[12:], the
// same computation go-ethereum's own crypto.PubkeyToAddress performs,
// reached here via the compressed-key representation our Signer
// produces (internal/signer).
func Ethereum(pubCompressed []byte) (string, error) {
	pub, err := btcec.ParsePubKey(pubCompressed)
	if err != nil {
		return "", fmt.Errorf("addressderiver: parsing public key: %w", err)
	}
	ecdsaPub := pub.ToECDSA()
	addr := ethcrypto.PubkeyToAddress(*ecdsaPub)
	return addr.Hex(), nil
}
