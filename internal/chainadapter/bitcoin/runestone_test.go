package bitcoin

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

func TestEncodeRunestoneStartsWithOpReturnMagic(t *testing.T) {
	script, err := EncodeRunestone([]Edict{{ID: RuneID{Block: 840000, Tx: 3}, Amount: 1000, Output: 0}})
	require.NoError(t, err)
	require.Equal(t, byte(txscript.OP_RETURN), script[0])
	require.Equal(t, byte(txscript.OP_13), script[1])
}

func TestParseRuneReleaseReturnsNilForPlainRelease(t *testing.T) {
	req := &chainadapter.ReleaseRequest{ChainSpecific: map[string]interface{}{}}
	runes, err := parseRuneRelease(req)
	require.NoError(t, err)
	require.Nil(t, runes)
}

func TestParseRuneReleaseRejectsMalformedRuneID(t *testing.T) {
	req := &chainadapter.ReleaseRequest{ChainSpecific: map[string]interface{}{"rune_id": "not-a-rune-id"}}
	_, err := parseRuneRelease(req)
	require.Error(t, err)
}

func TestBuildProducesRunestoneOutputForRunesRelease(t *testing.T) {
	tb, err := NewTransactionBuilder("regtest", testRegtestAddr(t))
	require.NoError(t, err)

	req := &chainadapter.ReleaseRequest{
		TicketID:    "tk1",
		Destination: domain.Destination{Receiver: testRegtestAddr(t)},
		Amount:      big.NewInt(5000),
		ChainSpecific: map[string]interface{}{
			"rune_id":            "840000:3",
			"rune_change_amount": int64(1500),
		},
	}
	utxos := []domain.Utxo{{Txid: strings.Repeat("1", 64), Vout: 0, Value: 1_000_000}}

	unsigned, err := tb.Build(context.Background(), req, utxos, 10)
	require.NoError(t, err)

	require.Equal(t, int64(PostageSats), unsigned.Amount.Int64())

	payload := unsigned.SigningPayload
	require.NotEmpty(t, payload)

	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(payload)))
	require.Equal(t, byte(txscript.OP_RETURN), tx.TxOut[1].PkScript[0])
	require.Equal(t, byte(txscript.OP_13), tx.TxOut[1].PkScript[1])
}

func TestBuildFallsBackToPlainPayoutWithoutRuneID(t *testing.T) {
	tb, err := NewTransactionBuilder("regtest", testRegtestAddr(t))
	require.NoError(t, err)

	req := &chainadapter.ReleaseRequest{
		TicketID:    "tk2",
		Destination: domain.Destination{Receiver: testRegtestAddr(t)},
		Amount:      big.NewInt(5000),
	}
	utxos := []domain.Utxo{{Txid: strings.Repeat("2", 64), Vout: 0, Value: 1_000_000}}

	unsigned, err := tb.Build(context.Background(), req, utxos, 10)
	require.NoError(t, err)
	require.Equal(t, int64(5000), unsigned.Amount.Int64())
}
