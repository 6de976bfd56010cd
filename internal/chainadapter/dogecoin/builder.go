// Package dogecoin implements the Capability interface for the Dogecoin
// customs. Dogecoin Core speaks the same RPC surface as Bitcoin Core
// (listunspent, sendrawtransaction, getrawtransaction, getblock), so
// this package reuses bitcoin's RPCHelper and transaction-building shape
// wholesale, swapping only the address version bytes (Dogecoin mainnet:
// P2PKH prefix 0x1e, P2SH prefix 0x16) and the confirmation/fee
// economics that differ from Bitcoin's.
package dogecoin

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

// mainNetParams describes Dogecoin mainnet's address version bytes.
// btcd's chaincfg.Params is generic enough to represent any base58-check
// address scheme; Dogecoin reuses Bitcoin's script/serialization rules
// and only changes these version bytes.
var mainNetParams = &chaincfg.Params{
	Name:             "dogecoin-mainnet",
	PubKeyHashAddrID: 0x1e, // 'D'
	ScriptHashAddrID: 0x16, // '9' or 'A'
	PrivateKeyID:     0x9e,
}

var testNetParams = &chaincfg.Params{
	Name:             "dogecoin-testnet",
	PubKeyHashAddrID: 0x71, // 'n'
	ScriptHashAddrID: 0xc4,
	PrivateKeyID:     0xf1,
}

func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return mainNetParams, nil
	case "testnet":
		return testNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported dogecoin network: %s", network)
	}
}

// TransactionBuilder builds Dogecoin release transactions. The wire
// encoding is identical to Bitcoin's pre-segwit MsgTx serialization;
// Dogecoin has no SegWit, so no witness data is ever attached.
type TransactionBuilder struct {
	network    *chaincfg.Params
	changeAddr string
}

// NewTransactionBuilder creates a new Dogecoin transaction builder.
func NewTransactionBuilder(network string, changeAddr string) (*TransactionBuilder, error) {
	params, err := networkParams(network)
	if err != nil {
		return nil, err
	}
	return &TransactionBuilder{network: params, changeAddr: changeAddr}, nil
}

// Build constructs an unsigned Dogecoin release transaction. feeRate is
// in koinu (the Dogecoin satoshi-equivalent) per byte; Dogecoin's
// default relay fee floor is far higher relative to coin value than
// Bitcoin's, so callers should not assume Bitcoin's sat/byte scale.
func (tb *TransactionBuilder) Build(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo, feeRate int64) (*chainadapter.UnsignedTransaction, error) {
	if err := tb.validateRequest(req); err != nil {
		return nil, err
	}

	selected, changeAmount, err := tb.selectUTXOs(availableUtxos, req.Amount.Int64(), feeRate)
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
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(txHash, utxo.Vout), nil, nil))
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
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to create recipient script", err)
	}
	tx.AddTxOut(wire.NewTxOut(req.Amount.Int64(), recipientScript))

	var changeAddress string
	if changeAmount > 0 {
		changeAddress = tb.changeAddr
		if custom, ok := req.ChainSpecific["change_address"].(string); ok && custom != "" {
			changeAddress = custom
		}
		changeAddr, err := btcutil.DecodeAddress(changeAddress, tb.network)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid change address: %s", changeAddress), err)
		}
		changeScript, err := txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to create change script", err)
		}
		tx.AddTxOut(wire.NewTxOut(changeAmount, changeScript))
	}

	if req.Memo != "" {
		memoBytes := []byte(req.Memo)
		if len(memoBytes) > 80 {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "memo exceeds 80 bytes", nil)
		}
		memoScript, err := txscript.NullDataScript(memoBytes)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to create memo script", err)
		}
		tx.AddTxOut(wire.NewTxOut(0, memoScript))
	}

	txSize := tx.SerializeSize()
	fee := int64(txSize) * feeRate
	txID := tx.TxHash().String()

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to serialize transaction", err)
	}

	unsigned := &chainadapter.UnsignedTransaction{
		ID:             txID,
		ChainID:        "dogecoin", // overridden by adapter
		From:           tb.changeAddr,
		To:             req.Destination.Receiver,
		Amount:         req.Amount,
		Fee:            big.NewInt(fee),
		Nonce:          nil,
		SigningPayload: buf.Bytes(),
		HumanReadable: fmt.Sprintf(`{"ticket_id":"%s","to":"%s","amount":%s koinu,"fee":%d koinu,"inputs":%d UTXOs,"change":%d koinu to %s,"network":"%s"}`,
			req.TicketID, req.Destination.Receiver, req.Amount.String(), fee, len(selected), changeAmount, changeAddress, tb.network.Name),
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
		return chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, "receiver address is required", nil)
	}
	if _, err := btcutil.DecodeAddress(req.Destination.Receiver, tb.network); err != nil {
		return chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid receiver address: %s", req.Destination.Receiver), err)
	}
	if req.Amount == nil || req.Amount.Cmp(big.NewInt(0)) <= 0 {
		return chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAmount, "amount must be positive", nil)
	}
	return nil
}

// selectUTXOs selects UTXOs first-fit in the order the caller supplies
// them, the same strategy as the Bitcoin builder; it does not sort by
// value.
func (tb *TransactionBuilder) selectUTXOs(utxos []domain.Utxo, amount int64, feeRate int64) ([]domain.Utxo, int64, error) {
	estimatedSize := int64(10 + 148*len(utxos) + 34*2)
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
			fmt.Sprintf("insufficient funds: have %d koinu, need %d koinu", totalSelected, totalNeeded),
			nil,
		)
	}

	changeAmount := totalSelected - amount - estimatedFee
	const dustThreshold = 100000000 // 1 DOGE, Dogecoin Core's default dust relay floor is far higher than Bitcoin's
	if changeAmount > 0 && changeAmount < dustThreshold {
		changeAmount = 0
	}
	return selected, changeAmount, nil
}
