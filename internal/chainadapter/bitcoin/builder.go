// Package bitcoin - Release transaction builder implementation
package bitcoin

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

// TransactionBuilder builds release transactions from a ReleaseRequest
// and the customs's currently available UTXOs.
type TransactionBuilder struct {
	network    *chaincfg.Params
	changeAddr string // change always returns to the deposit-collection address
}

// NewTransactionBuilder creates a new Bitcoin transaction builder.
func NewTransactionBuilder(network string, changeAddr string) (*TransactionBuilder, error) {
	params, err := networkParams(network)
	if err != nil {
		return nil, err
	}
	return &TransactionBuilder{network: params, changeAddr: changeAddr}, nil
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
}

// runeRelease carries the edict info a Runes release needs, parsed out
// of ReleaseRequest.ChainSpecific. It is nil for a plain BTC release.
type runeRelease struct {
	id           RuneID
	changeAmount uint64
}

// parseRuneRelease reads req's rune_id ("block:tx", per
// domain.RunesBalance.RuneID's string form) and optional
// rune_change_amount out of ChainSpecific. A release with no rune_id
// is an ordinary BTC payout.
func parseRuneRelease(req *chainadapter.ReleaseRequest) (*runeRelease, error) {
	raw, ok := req.ChainSpecific["rune_id"].(string)
	if !ok || raw == "" {
		return nil, nil
	}
	var block uint64
	var tx uint32
	if _, err := fmt.Sscanf(raw, "%d:%d", &block, &tx); err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("invalid rune_id %q", raw), err)
	}

	var changeAmount uint64
	switch v := req.ChainSpecific["rune_change_amount"].(type) {
	case uint64:
		changeAmount = v
	case int64:
		changeAmount = uint64(v)
	}
	return &runeRelease{id: RuneID{Block: block, Tx: tx}, changeAmount: changeAmount}, nil
}

// Build constructs an unsigned release transaction paying req's
// receiver out of availableUtxos, at feeRate satoshis/byte. When req
// carries rune_id in ChainSpecific, the recipient and (optional)
// change outputs are postage-sized and the rune balance itself moves
// via a Runestone edict output (spec scenario: 1 runestone output +
// BTC change + runes change), rather than the plain BTC amount path.
func (tb *TransactionBuilder) Build(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo, feeRate int64) (*chainadapter.UnsignedTransaction, error) {
	if err := tb.validateRequest(req); err != nil {
		return nil, err
	}

	runes, err := parseRuneRelease(req)
	if err != nil {
		return nil, err
	}

	targetAmount := req.Amount.Int64()
	if runes != nil {
		targetAmount = int64(PostageSats)
		if runes.changeAmount > 0 {
			targetAmount += int64(PostageSats)
		}
	}

	selected, changeAmount, err := tb.selectUTXOs(availableUtxos, targetAmount, feeRate)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)

	for _, utxo := range selected {
		txHash, err := chainhash.NewHashFromStr(utxo.Txid)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(
				chainadapter.ErrCodeInvalidTransaction,
				fmt.Sprintf("invalid UTXO txid: %s", utxo.Txid),
				err,
			)
		}

		txIn := wire.NewTxIn(wire.NewOutPoint(txHash, utxo.Vout), nil, nil)
		if rbfEnabled, ok := req.ChainSpecific["rbf_enabled"].(bool); ok && rbfEnabled {
			txIn.Sequence = wire.MaxTxInSequenceNum - 2 // BIP 125 RBF signal
		}
		tx.AddTxIn(txIn)
	}

	recipientAddr, err := btcutil.DecodeAddress(req.Destination.Receiver, tb.network)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid receiver address: %s", req.Destination.Receiver),
			err,
		)
	}

	recipientScript, err := txscript.PayToAddrScript(recipientAddr)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidTransaction,
			"failed to create recipient script",
			err,
		)
	}
	recipientAmount := req.Amount.Int64()
	if runes != nil {
		recipientAmount = int64(PostageSats)
	}
	tx.AddTxOut(wire.NewTxOut(recipientAmount, recipientScript)) // output 0

	// The runestone output immediately follows the receiver output, per
	// ord/runes convention; its script is filled in below once the
	// change outputs' indices (its edicts' Output fields) are known.
	var runestoneOut *wire.TxOut
	if runes != nil {
		runestoneOut = wire.NewTxOut(0, nil)
		tx.AddTxOut(runestoneOut) // output 1, placeholder
	}

	var changeAddress string
	var changeScript []byte
	if changeAmount > 0 || (runes != nil && runes.changeAmount > 0) {
		changeAddress = tb.changeAddr
		if custom, ok := req.ChainSpecific["change_address"].(string); ok && custom != "" {
			changeAddress = custom
		}

		changeAddr, err := btcutil.DecodeAddress(changeAddress, tb.network)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(
				chainadapter.ErrCodeInvalidAddress,
				fmt.Sprintf("invalid change address: %s", changeAddress),
				err,
			)
		}

		changeScript, err = txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(
				chainadapter.ErrCodeInvalidTransaction,
				"failed to create change script",
				err,
			)
		}
	}
	if changeAmount > 0 {
		tx.AddTxOut(wire.NewTxOut(changeAmount, changeScript))
	}

	if runes != nil {
		edicts := []Edict{{ID: runes.id, Amount: req.Amount.Uint64(), Output: 0}}
		if runes.changeAmount > 0 {
			edicts = append(edicts, Edict{ID: runes.id, Amount: runes.changeAmount, Output: uint32(len(tx.TxOut))})
			tx.AddTxOut(wire.NewTxOut(int64(PostageSats), changeScript))
		}
		runestoneScript, err := EncodeRunestone(edicts)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to encode runestone", err)
		}
		runestoneOut.PkScript = runestoneScript
	}

	if req.Memo != "" && runes == nil {
		memoBytes := []byte(req.Memo)
		if len(memoBytes) > 80 {
			return nil, chainadapter.NewNonRetryableError(
				chainadapter.ErrCodeInvalidTransaction,
				"memo exceeds 80 bytes",
				nil,
			)
		}

		memoScript, err := txscript.NullDataScript(memoBytes)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(
				chainadapter.ErrCodeInvalidTransaction,
				"failed to create memo script",
				err,
			)
		}
		tx.AddTxOut(wire.NewTxOut(0, memoScript))
	}

	txSize := tx.SerializeSize()
	fee := int64(txSize) * feeRate
	txID := tx.TxHash().String()

	signingPayload, err := tb.createSigningPayload(tx)
	if err != nil {
		return nil, err
	}

	unsigned := &chainadapter.UnsignedTransaction{
		ID:             txID,
		ChainID:        "bitcoin", // overridden by adapter
		From:           tb.changeAddr,
		To:             req.Destination.Receiver,
		Amount:         big.NewInt(recipientAmount),
		Fee:            big.NewInt(fee),
		Nonce:          nil, // UTXO model, no nonce
		SigningPayload: signingPayload,
		HumanReadable:  tb.createHumanReadable(req, selected, fee, changeAmount, changeAddress),
		ChainSpecific: map[string]interface{}{
			"utxos":          selected,
			"change_amount":  changeAmount,
			"change_address": changeAddress,
			"tx_size":        txSize,
			"fee_rate":       feeRate,
		},
		CreatedAt: time.Now(),
	}

	return unsigned, nil
}

func (tb *TransactionBuilder) validateRequest(req *chainadapter.ReleaseRequest) error {
	if req.Destination.Receiver == "" {
		return chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAddress,
			"receiver address is required",
			nil,
		)
	}

	if _, err := btcutil.DecodeAddress(req.Destination.Receiver, tb.network); err != nil {
		return chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid receiver address: %s", req.Destination.Receiver),
			err,
		)
	}

	if req.Amount == nil || req.Amount.Cmp(big.NewInt(0)) <= 0 {
		return chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAmount,
			"amount must be positive",
			nil,
		)
	}

	return nil
}

// selectUTXOs selects UTXOs for the release first-fit, in the order the
// caller supplies them, stopping once amount plus the estimated fee is
// covered; it does not sort by value.
func (tb *TransactionBuilder) selectUTXOs(utxos []domain.Utxo, amount int64, feeRate int64) ([]domain.Utxo, int64, error) {
	estimatedSize := int64(10 + 148*len(utxos) + 34*2) // rough P2WPKH estimate
	estimatedFee := estimatedSize * feeRate
	totalNeeded := amount + estimatedFee

	selected := make([]domain.Utxo, 0)
	var totalSelected int64
	for _, utxo := range utxos {
		selected = append(selected, utxo)
		totalSelected += int64(utxo.Value)
		if totalSelected >= totalNeeded {
			break
		}
	}

	if totalSelected < totalNeeded {
		return nil, 0, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInsufficientFunds,
			fmt.Sprintf("insufficient funds: have %d satoshis, need %d satoshis", totalSelected, totalNeeded),
			nil,
		)
	}

	changeAmount := totalSelected - amount - estimatedFee

	const dustThreshold = 546
	if changeAmount > 0 && changeAmount < dustThreshold {
		changeAmount = 0
	}

	return selected, changeAmount, nil
}

func (tb *TransactionBuilder) createSigningPayload(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidTransaction,
			"failed to serialize transaction",
			err,
		)
	}
	return buf.Bytes(), nil
}

func (tb *TransactionBuilder) createHumanReadable(req *chainadapter.ReleaseRequest, utxos []domain.Utxo, fee int64, changeAmount int64, changeAddress string) string {
	return fmt.Sprintf(`{
  "ticket_id": "%s",
  "to": "%s",
  "amount": %s satoshis,
  "fee": %d satoshis,
  "inputs": %d UTXOs,
  "change": %d satoshis to %s,
  "memo": "%s",
  "network": "%s"
}`, req.TicketID, req.Destination.Receiver, req.Amount.String(), fee, len(utxos), changeAmount, changeAddress, req.Memo, tb.network.Name)
}
