package signer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateMnemonicThenLocalSigner(t *testing.T) {
	m, err := GenerateMnemonic(12)
	require.NoError(t, err)
	require.NoError(t, ValidateMnemonic(m))

	l, err := NewLocalFromMnemonic(m, "")
	require.NoError(t, err)
	pub, err := l.PublicKey(nil, []byte{0x01, 'x'})
	require.NoError(t, err)
	require.Len(t, pub, 33)
}

func TestGenerateMnemonicRejectsBadWordCount(t *testing.T) {
	_, err := GenerateMnemonic(15)
	require.Error(t, err)
}

func TestValidateMnemonicRejectsGarbage(t *testing.T) {
	require.Error(t, ValidateMnemonic("not a real mnemonic phrase at all"))
	require.Error(t, ValidateMnemonic(""))
}
