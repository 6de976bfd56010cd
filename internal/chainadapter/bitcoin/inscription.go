// Package bitcoin - BRC-20 inscription envelope and commit/reveal/transfer builder
package bitcoin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

// PostageSats is the dust-limit-sized amount ord inscriptions carry, the
// same 546 satoshi constant the ord/BRC-20 tooling calls POSTAGE.
const PostageSats = 546

var ordProtocolID = []byte("ord")

const (
	contentTypeTag byte = 1
	bodyTag        byte = 0
	maxScriptPush       = 520 // MAX_SCRIPT_ELEMENT_SIZE
)

// Brc20TransferPayload builds the JSON body of a BRC-20 "transfer"
// inscription for the given tick and decimal amount, per the protocol
// every BRC-20 indexer (ordinals.com, Hiro, UniSat, ...) parses.
func Brc20TransferPayload(tick string, amount string) []byte {
	body := struct {
		P    string `json:"p"`
		Op   string `json:"op"`
		Tick string `json:"tick"`
		Amt  string `json:"amt"`
	}{P: "brc-20", Op: "transfer", Tick: tick, Amt: amount}
	b, _ := json.Marshal(body)
	return b
}

// buildEnvelopeScript assembles an ord inscription envelope: an
// OP_FALSE OP_IF ... OP_ENDIF block carrying a content-type field and a
// body, pushed as a no-op branch so the reveal transaction's witness
// script never actually executes it. Grounded on
// original_source/customs/brc20/src/ord/inscription/nft.rs's
// append_reveal_script_to_builder, simplified to the two fields a
// BRC-20 transfer inscription needs (content type + body) rather than
// the full NFT field set (pointer, parents, metadata, ...).
func buildEnvelopeScript(contentType string, body []byte) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_FALSE)
	builder.AddOp(txscript.OP_IF)
	builder.AddData(ordProtocolID)
	builder.AddData([]byte{contentTypeTag})
	builder.AddData([]byte(contentType))
	builder.AddData([]byte{bodyTag})
	for len(body) > 0 {
		n := maxScriptPush
		if len(body) < n {
			n = len(body)
		}
		builder.AddData(body[:n])
		body = body[n:]
	}
	builder.AddOp(txscript.OP_ENDIF)
	return builder.Script()
}

// CommitPlan is the output of planning an inscription: the envelope
// script, the taproot output it commits to, and everything the reveal
// transaction needs to spend that output via the script path.
type CommitPlan struct {
	EnvelopeScript []byte
	InternalPubKey *btcec.PublicKey
	TaprootAddress string
	PkScript       []byte
	ControlBlock   []byte
	LeafVersion    txscript.TapLeafVersion
}

// InscriptionBuilder plans and builds the commit, reveal, and transfer
// transactions a BRC-20 release needs, the Go equivalent of
// original_source/customs/brc20/src/ord/builder/mod.rs's
// OrdTransactionBuilder.
type InscriptionBuilder struct {
	network *chaincfg.Params
}

// NewInscriptionBuilder creates an InscriptionBuilder for the given
// network name ("mainnet", "testnet3", "regtest").
func NewInscriptionBuilder(network string) (*InscriptionBuilder, error) {
	params, err := networkParams(network)
	if err != nil {
		return nil, err
	}
	return &InscriptionBuilder{network: params}, nil
}

// PlanCommit derives the taproot address an inscription commits to and
// the control block its reveal spend will need, for an internal key
// the threshold signer owns (the customs deposit key, matching the
// original's deposit_pubkey use as both the P2TR internal key and the
// leftover-recipient key).
func (ib *InscriptionBuilder) PlanCommit(internalPubKey *btcec.PublicKey, contentType string, body []byte) (*CommitPlan, error) {
	envelopeScript, err := buildEnvelopeScript(contentType, body)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: building envelope script: %w", err)
	}

	leaf := txscript.NewBaseTapLeaf(envelopeScript)
	scriptTree := txscript.AssembleTaprootScriptTree(leaf)
	rootHash := scriptTree.RootNode.TapHash()

	outputKey := txscript.ComputeTaprootOutputKey(internalPubKey, rootHash[:])
	taprootAddr, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(outputKey), ib.network)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: deriving taproot commit address: %w", err)
	}
	pkScript, err := txscript.PayToAddrScript(taprootAddr)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: building commit pkScript: %w", err)
	}

	ctrlBlock := scriptTree.LeafMerkleProofs[0].ToControlBlock(internalPubKey)
	ctrlBlockBytes, err := ctrlBlock.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("bitcoin: serializing control block: %w", err)
	}

	return &CommitPlan{
		EnvelopeScript: envelopeScript,
		InternalPubKey: internalPubKey,
		TaprootAddress: taprootAddr.EncodeAddress(),
		PkScript:       pkScript,
		ControlBlock:   ctrlBlockBytes,
		LeafVersion:    txscript.BaseLeafVersion,
	}, nil
}

// Fees is the three-transaction cost breakdown a BRC-20 release pays:
// the commit transaction's own fee, the reveal transaction's fee, and
// the fee for the final transfer spend that actually moves the
// inscribed sat to the receiver. Mirrors
// original_source/customs/brc20/src/ord/builder/fees.rs's Fees shape.
type Fees struct {
	CommitFee int64
	RevealFee int64
	SpendFee  int64
}

// Sum returns the total of all three fee components.
func (f Fees) Sum() int64 {
	return f.CommitFee + f.RevealFee + f.SpendFee
}

// CalcFees estimates Fees at feeRate satoshis/vbyte using rough
// single-input/single-output vsize constants for each of the three
// transaction shapes, the same order-of-magnitude estimate
// TransactionBuilder.selectUTXOs uses for ordinary releases.
func CalcFees(feeRate int64) Fees {
	const commitVSize = 153 // 1-in P2TR-key-spend-funded, 2-out commit tx
	const revealVSize = 150 // 1-in script-path reveal, 1-out
	const spendVSize = 122  // 1-in P2TR key-path transfer spend, 2-out
	return Fees{
		CommitFee: commitVSize * feeRate,
		RevealFee: revealVSize * feeRate,
		SpendFee:  spendVSize * feeRate,
	}
}

// BuildCommitTransaction builds the unsigned commit transaction: it
// spends inputs (customs-controlled UTXOs) and pays plan's taproot
// address just enough to cover the reveal transaction's output and
// fee, sending any excess back to changeScriptPubKey.
func (ib *InscriptionBuilder) BuildCommitTransaction(plan *CommitPlan, inputs []domain.Utxo, changeScriptPubKey []byte, fees Fees) (*chainadapter.UnsignedTransaction, int64, error) {
	if len(inputs) == 0 {
		return nil, 0, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInsufficientFunds, "no inputs for commit transaction", nil)
	}

	revealBalance := int64(PostageSats) + fees.RevealFee + fees.SpendFee

	var inputTotal int64
	for _, u := range inputs {
		inputTotal += int64(u.Value)
	}
	required := revealBalance + fees.CommitFee
	if inputTotal < required {
		return nil, 0, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInsufficientFunds,
			fmt.Sprintf("insufficient funds for commit: have %d, need %d", inputTotal, required),
			nil,
		)
	}
	changeAmount := inputTotal - required

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, u := range inputs {
		txHash, err := chainhash.NewHashFromStr(u.Txid)
		if err != nil {
			return nil, 0, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("invalid commit input txid: %s", u.Txid), err)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(txHash, u.Vout), nil, nil))
	}
	tx.AddTxOut(wire.NewTxOut(revealBalance, plan.PkScript))
	if changeAmount > 0 {
		tx.AddTxOut(wire.NewTxOut(changeAmount, changeScriptPubKey))
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, 0, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to serialize commit transaction", err)
	}

	unsigned := &chainadapter.UnsignedTransaction{
		ID:             tx.TxHash().String(),
		ChainID:        "bitcoin",
		To:             plan.TaprootAddress,
		Amount:         big.NewInt(revealBalance),
		Fee:            big.NewInt(fees.CommitFee),
		SigningPayload: buf.Bytes(),
		HumanReadable:  fmt.Sprintf(`{"kind":"brc20_commit","to":"%s","reveal_balance":%d,"fee":%d}`, plan.TaprootAddress, revealBalance, fees.CommitFee),
		ChainSpecific: map[string]interface{}{
			"inputs":         inputs,
			"change_amount":  changeAmount,
			"reveal_balance": revealBalance,
		},
		CreatedAt: time.Now(),
	}
	return unsigned, revealBalance, nil
}

// RevealSighash computes the BIP341 tapscript sighash a reveal
// transaction's single script-path input must be signed over — a
// different digest than the double-SHA256 payload hash
// Adapter.Sign uses for ordinary (key-path) Bitcoin
// transactions. tx is the reveal transaction, commitPkScript/
// commitValue describe the commit output it spends (input 0), and
// leafScript is the envelope script revealed via the script path.
func RevealSighash(tx *wire.MsgTx, commitPkScript []byte, commitValue int64, leafScript []byte) ([]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(commitPkScript, commitValue)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	leaf := txscript.NewBaseTapLeaf(leafScript)
	return txscript.CalcTapscriptSignaturehash(sigHashes, txscript.SigHashDefault, tx, 0, fetcher, leaf)
}

// BuildRevealTransaction spends the commit transaction's taproot
// output via the script path, revealing the inscription envelope and
// sending the postage-sized output back to recipientAddr (the
// customs's own deposit address, not the final receiver: per ord/
// BRC-20 convention, a "transfer" inscription is first revealed to its
// own owner, then the specific inscribed sat is sent on to the real
// receiver in a later, ordinary transaction — see
// BuildTransferTransaction).
//
// The witness a script-path taproot spend needs (signature, leaf
// script, control block) is assembled by the caller once a signature
// over RevealSighash is available (chainadapter/bitcoin.Adapter.Sign's
// reveal-stage branch does this); plan's leaf script, control block,
// and commit pkScript/value are carried in ChainSpecific so that
// caller never has to replan the commit to re-derive them.
func (ib *InscriptionBuilder) BuildRevealTransaction(plan *CommitPlan, commitTxid string, revealBalance int64, recipientAddr string, fees Fees) (*chainadapter.UnsignedTransaction, error) {
	txHash, err := chainhash.NewHashFromStr(commitTxid)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("invalid commit txid: %s", commitTxid), err)
	}

	addr, err := btcutil.DecodeAddress(recipientAddr, ib.network)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid reveal recipient: %s", recipientAddr), err)
	}
	outScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to build reveal output script", err)
	}

	outValue := int64(PostageSats) + fees.SpendFee
	if outValue > revealBalance-fees.RevealFee {
		outValue = revealBalance - fees.RevealFee
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(txHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(outValue, outScript))

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to serialize reveal transaction", err)
	}

	unsigned := &chainadapter.UnsignedTransaction{
		ID:             tx.TxHash().String(),
		ChainID:        "bitcoin",
		To:             recipientAddr,
		Amount:         big.NewInt(outValue),
		Fee:            big.NewInt(fees.RevealFee),
		SigningPayload: buf.Bytes(),
		HumanReadable:  fmt.Sprintf(`{"kind":"brc20_reveal","to":"%s","value":%d,"fee":%d}`, recipientAddr, outValue, fees.RevealFee),
		ChainSpecific: map[string]interface{}{
			"commit_txid":     commitTxid,
			"leaf_script":     plan.EnvelopeScript,
			"control_block":   plan.ControlBlock,
			"leaf_version":    plan.LeafVersion,
			"commit_pkscript": plan.PkScript,
			"commit_value":    revealBalance,
		},
		CreatedAt: time.Now(),
	}
	return unsigned, nil
}

// BuildTransferTransaction spends the revealed, inscription-carrying
// postage output to the real receiver, funding the network fee from
// separate feeUtxos so the inscribed sat itself is never split or
// merged with other value (splitting it would corrupt the inscription
// under the ord "first sat" assignment rule). This is the transaction
// BRC-20 indexers recognize as the transfer completing, grounded on
// original_source/customs/brc20/src/custom_to_bitcoin.rs's
// build_transfer_transfer step (spend_utxo_transaction).
func (ib *InscriptionBuilder) BuildTransferTransaction(inscribedUtxo domain.Utxo, feeUtxos []domain.Utxo, recipientAddr string, changeScriptPubKey []byte, feeRate int64) (*chainadapter.UnsignedTransaction, error) {
	if inscribedUtxo.Value != PostageSats {
		return nil, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidTransaction,
			fmt.Sprintf("inscribed utxo has unexpected value %d, want %d", inscribedUtxo.Value, PostageSats),
			nil,
		)
	}

	addr, err := btcutil.DecodeAddress(recipientAddr, ib.network)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid transfer receiver: %s", recipientAddr), err)
	}
	outScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to build transfer output script", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)

	inscribedHash, err := chainhash.NewHashFromStr(inscribedUtxo.Txid)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("invalid inscribed utxo txid: %s", inscribedUtxo.Txid), err)
	}
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(inscribedHash, inscribedUtxo.Vout), nil, nil))

	var feeTotal int64
	for _, u := range feeUtxos {
		h, err := chainhash.NewHashFromStr(u.Txid)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("invalid fee-funding utxo txid: %s", u.Txid), err)
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(h, u.Vout), nil, nil))
		feeTotal += int64(u.Value)
	}

	tx.AddTxOut(wire.NewTxOut(PostageSats, outScript))

	estimatedVSize := int64(110 + 70*len(feeUtxos))
	fee := estimatedVSize * feeRate
	changeAmount := feeTotal - fee
	if changeAmount < 0 {
		return nil, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInsufficientFunds,
			fmt.Sprintf("insufficient fee-funding utxos: have %d, need %d", feeTotal, fee),
			nil,
		)
	}
	if changeAmount > 0 {
		tx.AddTxOut(wire.NewTxOut(changeAmount, changeScriptPubKey))
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to serialize transfer transaction", err)
	}

	unsigned := &chainadapter.UnsignedTransaction{
		ID:             tx.TxHash().String(),
		ChainID:        "bitcoin",
		To:             recipientAddr,
		Amount:         big.NewInt(PostageSats),
		Fee:            big.NewInt(fee),
		SigningPayload: buf.Bytes(),
		HumanReadable:  fmt.Sprintf(`{"kind":"brc20_transfer","to":"%s","value":%d,"fee":%d}`, recipientAddr, PostageSats, fee),
		ChainSpecific: map[string]interface{}{
			"inscribed_utxo": inscribedUtxo,
			"fee_utxos":      feeUtxos,
			"change_amount":  changeAmount,
		},
		CreatedAt: time.Now(),
	}
	return unsigned, nil
}
