package addressderiver

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

func testPubKey(t *testing.T) []byte {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey().SerializeCompressed()
}

func TestPathEncodesDestinationUnambiguously(t *testing.T) {
	d1 := domain.Destination{TargetChainID: "eICP", Receiver: "abc", Token: "BTC"}
	d2 := domain.Destination{TargetChainID: "eICP", Receiver: "ab", Token: "cBTC"}

	require.NotEqual(t, Path(d1), Path(d2), "different destinations must not collide despite equal concatenation")
	require.Equal(t, Path(d1), Path(d1))
}

func TestPathReservedDestinationsAreStableAndDistinct(t *testing.T) {
	require.NotEqual(t, Path(domain.ChangeDestination), Path(domain.FeePaymentDestination))
	require.Equal(t, Path(domain.ChangeDestination), Path(domain.ChangeDestination))
	require.Equal(t, Path(domain.FeePaymentDestination), Path(domain.FeePaymentDestination))
}

func TestBitcoinAddressIsBech32(t *testing.T) {
	addr, err := Bitcoin(testPubKey(t), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Contains(t, addr, "bc1")
}

func TestDogecoinAddressHasExpectedPrefix(t *testing.T) {
	addr, err := Dogecoin(testPubKey(t))
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	require.Equal(t, byte('D'), addr[0])
}

func TestEthereumAddressIsHexChecksummed(t *testing.T) {
	addr, err := Ethereum(testPubKey(t))
	require.NoError(t, err)
	require.Len(t, addr, 42)
	require.Equal(t, "0x", addr[:2])
}

func TestCosmosAddressHasPrefix(t *testing.T) {
	addr, err := Cosmos(testPubKey(t), "cosmos")
	require.NoError(t, err)
	require.Contains(t, addr, "cosmos1")
}

func TestSolanaRejectsWrongKeyLength(t *testing.T) {
	_, err := Solana([]byte{1, 2, 3})
	require.Error(t, err)
}
