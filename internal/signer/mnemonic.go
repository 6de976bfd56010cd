package signer

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"
)

// GenerateMnemonic returns a BIP39 mnemonic phrase. wordCount must be 12
// (128-bit entropy) or 24 (256-bit entropy). Adapted from
// internal/services/bip39service/service.go (teacher), kept as the seed
// front-end for Local so operators can stand up a development key from
// a recorded phrase the same way the teacher's wallet onboarding did.
func GenerateMnemonic(wordCount int) (string, error) {
	bip39.SetWordList(wordlists.English)

	var entropyBits int
	switch wordCount {
	case 12:
		entropyBits = 128
	case 24:
		entropyBits = 256
	default:
		return "", fmt.Errorf("signer: invalid word count %d: must be 12 or 24", wordCount)
	}

	entropy := make([]byte, entropyBits/8)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("signer: generating entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("signer: generating mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks wordlist membership and checksum.
func ValidateMnemonic(mnemonic string) error {
	if mnemonic == "" {
		return errors.New("signer: mnemonic cannot be empty")
	}
	bip39.SetWordList(wordlists.English)
	if !bip39.IsMnemonicValid(mnemonic) {
		return errors.New("signer: invalid mnemonic: checksum verification failed or invalid words")
	}
	return nil
}

// NewLocalFromMnemonic validates mnemonic, derives its 64-byte BIP39
// seed (with an optional passphrase), and builds a Local signer from it.
func NewLocalFromMnemonic(mnemonic, passphrase string) (*Local, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewLocal(seed)
}
