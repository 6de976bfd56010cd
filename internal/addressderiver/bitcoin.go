package addressderiver

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// Bitcoin renders a compressed secp256k1 public key as a native-segwit
// (P2WPKH) address, grounded on pubKeyToP2WPKHAddress in
// src/chainadapter/bitcoin/derive.go (teacher).
func Bitcoin(pubCompressed []byte, net *chaincfg.Params) (string, error) {
	pub, err := btcec.ParsePubKey(pubCompressed)
	if err != nil {
		return "", fmt.Errorf("addressderiver: parsing public key: %w", err)
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, net)
	if err != nil {
		return "", fmt.Errorf("addressderiver: building P2WPKH address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// dogecoinMainNetParams mirrors internal/services/address/bitcoin.go
// (teacher), which carried the exact Dogecoin version bytes; kept here
// rather than re-deriving them so the Dogecoin customs produces
// addresses real Dogecoin wallets recognize.
var dogecoinMainNetParams = chaincfg.Params{
	Name:             "dogecoin_mainnet",
	PubKeyHashAddrID: 0x1E,
	ScriptHashAddrID: 0x16,
	PrivateKeyID:     0x9E,
}

// Dogecoin renders a compressed secp256k1 public key as a Dogecoin
// P2PKH address (Dogecoin has no native segwit equivalent in production
// use, so customs funds on Dogecoin sit in legacy P2PKH outputs).
func Dogecoin(pubCompressed []byte) (string, error) {
	pub, err := btcec.ParsePubKey(pubCompressed)
	if err != nil {
		return "", fmt.Errorf("addressderiver: parsing public key: %w", err)
	}
	hash := btcutil.Hash160(pub.SerializeCompressed())
	addr, err := btcutil.NewAddressPubKeyHash(hash, &dogecoinMainNetParams)
	if err != nil {
		return "", fmt.Errorf("addressderiver: building dogecoin address: %w", err)
	}
	return addr.EncodeAddress(), nil
}
