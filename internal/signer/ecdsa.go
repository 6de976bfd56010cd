package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// signECDSA produces a 65-byte recoverable secp256k1 signature
// (r || s || v, v in {0,1}) over digest. Using go-ethereum's recoverable
// format for every chain, not just EVM ones, means callers that need a
// plain (r, s) signature (Bitcoin, Dogecoin) just take the first 64
// bytes, while EVM callers can use all 65 as-is — one signing primitive
// instead of two.
func signECDSA(priv *btcec.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest, priv.ToECDSA())
	if err != nil {
		return nil, fmt.Errorf("recoverable ecdsa sign: %w", err)
	}
	return sig, nil
}

// signSchnorr produces a 64-byte BIP340 Schnorr signature over digest,
// the format a taproot script-path spend's witness needs (BIP341
// tapscript sighash). Unlike signECDSA's recoverable format, a Schnorr
// signature carries no recovery byte — the verifier is always handed
// the x-only public key out of band (here, via the witness's control
// block/leaf script).
func signSchnorr(priv *btcec.PrivateKey, digest []byte) ([]byte, error) {
	sig, err := schnorr.Sign(priv, digest)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}
