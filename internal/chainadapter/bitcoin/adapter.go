// Package bitcoin implements the Capability interface for the
// Bitcoin customs: deposit observation over the UTXO set, release
// transaction construction/broadcast, and confirmation tracking.
package bitcoin

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/octopus-network/omnity-bridge-core/internal/addressderiver"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/signer"
)

// Adapter implements chainadapter.Capability for Bitcoin.
type Adapter struct {
	rpcClient    rpc.RPCClient
	txStore      storage.TransactionStateStore
	chainID      string // "Bitcoin", "Bitcoin-testnet", "Bitcoin-regtest"
	network      string // "mainnet", "testnet3", "regtest"
	depositAddr  string // customs deposit-collection address, watched for ObserveDeposits
	builder      *TransactionBuilder
	rpcHelper    *RPCHelper
	feeEstimator *FeeEstimator
	signer       signer.Signer
}

// NewAdapter creates a new Bitcoin Capability implementation.
func NewAdapter(rpcClient rpc.RPCClient, txStore storage.TransactionStateStore, network string, depositAddr string, sign signer.Signer) (*Adapter, error) {
	chainID := "Bitcoin"
	if network == "testnet3" {
		chainID = "Bitcoin-testnet"
	} else if network == "regtest" {
		chainID = "Bitcoin-regtest"
	}

	builder, err := NewTransactionBuilder(network, depositAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction builder: %w", err)
	}

	rpcHelper := NewRPCHelper(rpcClient)

	return &Adapter{
		rpcClient:    rpcClient,
		txStore:      txStore,
		chainID:      chainID,
		network:      network,
		depositAddr:  depositAddr,
		builder:      builder,
		rpcHelper:    rpcHelper,
		feeEstimator: NewFeeEstimator(rpcHelper, network),
		signer:       sign,
	}, nil
}

var _ chainadapter.Capability = (*Adapter)(nil)

// ChainID returns the unique identifier for this Bitcoin network.
func (b *Adapter) ChainID() string {
	return b.chainID
}

// Capabilities returns the feature flags supported by the Bitcoin adapter.
func (b *Adapter) Capabilities() *chainadapter.Capabilities {
	return &chainadapter.Capabilities{
		ChainID:               b.chainID,
		InterfaceVersion:      "1.0.0",
		SupportsEIP1559:       false,
		SupportsMemo:          true, // OP_RETURN
		SupportsMultiSig:      true,
		SupportsFeeDelegation: false,
		SupportsWebSocket:     false,
		SupportsRBF:           true, // BIP 125
		MaxMemoLength:         80,
		MinConfirmations:      6,
	}
}

// DeriveAddress derives the P2WPKH deposit address for dest, via the
// threshold signer's public key at dest's derivation path.
func (b *Adapter) DeriveAddress(ctx context.Context, dest domain.Destination) (string, error) {
	path := addressderiver.Path(dest)
	pub, err := b.signer.PublicKey(ctx, path)
	if err != nil {
		return "", chainadapter.NewNonRetryableError(
			"ERR_KEY_DERIVATION",
			fmt.Sprintf("failed to derive public key: %s", err.Error()),
			err,
		)
	}

	params, err := networkParams(b.network)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_UNSUPPORTED_NETWORK", err.Error(), err)
	}

	addr, err := addressderiver.Bitcoin(pub, params)
	if err != nil {
		return "", chainadapter.NewNonRetryableError(
			"ERR_ADDRESS_ENCODING",
			fmt.Sprintf("failed to derive bitcoin address: %s", err.Error()),
			err,
		)
	}
	return addr, nil
}

// ObserveDeposits scans the customs deposit-collection address for
// UTXOs, returning candidate ticket requests for the caller to dedupe
// against the event log and validate (Runes balance, min confirmations).
func (b *Adapter) ObserveDeposits(ctx context.Context) ([]domain.GenTicketRequest, error) {
	utxos, err := b.rpcHelper.ListUnspent(ctx, b.depositAddr)
	if err != nil {
		return nil, err
	}

	requests := make([]domain.GenTicketRequest, 0, len(utxos))
	for _, u := range utxos {
		requests = append(requests, domain.GenTicketRequest{
			Txid:       fmt.Sprintf("%s:%d", u.Txid, u.Vout),
			NewUtxos:   []domain.Utxo{u},
			ReceivedAt: time.Now().Unix(),
			Status:     domain.GenTicketPending,
		})
	}
	return requests, nil
}

// BuildReleaseTx constructs an unsigned Bitcoin release transaction.
func (b *Adapter) BuildReleaseTx(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo) (*chainadapter.UnsignedTransaction, error) {
	if len(availableUtxos) == 0 {
		return nil, chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInsufficientFunds,
			"no UTXOs available for release",
			nil,
		)
	}

	var targetBlocks int
	switch req.FeeSpeed {
	case chainadapter.FeeSpeedFast:
		targetBlocks = 1
	case chainadapter.FeeSpeedSlow:
		targetBlocks = 6
	default:
		targetBlocks = 3
	}

	feeRate, err := b.rpcHelper.EstimateSmartFee(ctx, targetBlocks)
	if err != nil {
		feeRate = 10 // sat/byte fallback
	}

	var unsigned *chainadapter.UnsignedTransaction
	if tick, ok := req.ChainSpecific["brc20_tick"].(string); ok && tick != "" {
		unsigned, err = b.buildBrc20Release(ctx, req, availableUtxos, feeRate, tick)
	} else {
		unsigned, err = b.builder.Build(ctx, req, availableUtxos, feeRate)
	}
	if err != nil {
		return nil, err
	}
	unsigned.ChainID = b.chainID
	return unsigned, nil
}

// buildBrc20Release dispatches one of the three BRC-20 release steps
// (commit, reveal, transfer) through InscriptionBuilder, keyed by
// req.ChainSpecific["inscription_stage"] ("" behaves as "commit").
// Each step's UnsignedTransaction carries the fields the next step (or
// Sign, for the reveal step) needs in its own ChainSpecific, so the
// caller only has to thread that map forward between release attempts
// for the same ticket — it never has to re-plan the commit itself.
func (b *Adapter) buildBrc20Release(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo, feeRate int64, tick string) (*chainadapter.UnsignedTransaction, error) {
	ib, err := NewInscriptionBuilder(b.network)
	if err != nil {
		return nil, err
	}
	fees := CalcFees(feeRate)

	stage, _ := req.ChainSpecific["inscription_stage"].(string)
	switch stage {
	case "", "commit":
		path := addressderiver.Path(domain.ChangeDestination)
		pub, err := b.signer.PublicKey(ctx, path)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError("ERR_KEY_DERIVATION", fmt.Sprintf("failed to derive internal key: %s", err.Error()), err)
		}
		internalKey, err := btcec.ParsePubKey(pub)
		if err != nil {
			return nil, chainadapter.NewNonRetryableError("ERR_KEY_DERIVATION", "invalid internal public key", err)
		}

		plan, err := ib.PlanCommit(internalKey, "text/plain;charset=utf-8", Brc20TransferPayload(tick, req.Amount.String()))
		if err != nil {
			return nil, err
		}
		changeScript, err := changePkScript(b.network, b.depositAddr)
		if err != nil {
			return nil, err
		}
		unsigned, _, err := ib.BuildCommitTransaction(plan, availableUtxos, changeScript, fees)
		if err != nil {
			return nil, err
		}
		unsigned.ChainSpecific["inscription_stage"] = "commit"
		unsigned.ChainSpecific["leaf_script"] = plan.EnvelopeScript
		unsigned.ChainSpecific["control_block"] = plan.ControlBlock
		unsigned.ChainSpecific["commit_pkscript"] = plan.PkScript
		return unsigned, nil

	case "reveal":
		commitTxid, _ := req.ChainSpecific["commit_txid"].(string)
		revealBalance, _ := req.ChainSpecific["reveal_balance"].(int64)
		leafScript, _ := req.ChainSpecific["leaf_script"].([]byte)
		controlBlock, _ := req.ChainSpecific["control_block"].([]byte)
		commitPkScript, _ := req.ChainSpecific["commit_pkscript"].([]byte)
		if commitTxid == "" || revealBalance == 0 || len(leafScript) == 0 || len(commitPkScript) == 0 {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "reveal stage missing commit context", nil)
		}
		plan := &CommitPlan{EnvelopeScript: leafScript, ControlBlock: controlBlock, PkScript: commitPkScript}
		unsigned, err := ib.BuildRevealTransaction(plan, commitTxid, revealBalance, b.depositAddr, fees)
		if err != nil {
			return nil, err
		}
		unsigned.ChainSpecific["inscription_stage"] = "reveal"
		return unsigned, nil

	case "transfer":
		inscribed, ok := req.ChainSpecific["inscribed_utxo"].(domain.Utxo)
		if !ok {
			return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "transfer stage missing inscribed_utxo", nil)
		}
		changeScript, err := changePkScript(b.network, b.depositAddr)
		if err != nil {
			return nil, err
		}
		unsigned, err := ib.BuildTransferTransaction(inscribed, availableUtxos, req.Destination.Receiver, changeScript, feeRate)
		if err != nil {
			return nil, err
		}
		unsigned.ChainSpecific["inscription_stage"] = "transfer"
		return unsigned, nil

	default:
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("unknown inscription stage %q", stage), nil)
	}
}

func changePkScript(network, addr string) ([]byte, error) {
	params, err := networkParams(network)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_UNSUPPORTED_NETWORK", err.Error(), err)
	}
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid change address: %s", addr), err)
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to build change script", err)
	}
	return script, nil
}

// Estimate calculates Bitcoin fee estimates with confidence bounds.
func (b *Adapter) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	estimate, err := b.feeEstimator.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}
	estimate.ChainID = b.chainID
	return estimate, nil
}

// Sign signs an unsigned Bitcoin transaction through the threshold
// signer, using the change-destination derivation path (the customs
// address holds the single key all release transactions spend from).
func (b *Adapter) Sign(ctx context.Context, unsigned *chainadapter.UnsignedTransaction, sign chainadapter.Signer) (*chainadapter.SignedTransaction, error) {
	if unsigned.ChainID != b.chainID {
		return nil, chainadapter.NewNonRetryableError(
			"ERR_CHAIN_MISMATCH",
			fmt.Sprintf("chain mismatch: unsigned tx for %s, adapter for %s", unsigned.ChainID, b.chainID),
			nil,
		)
	}
	if len(unsigned.SigningPayload) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_PAYLOAD", "SigningPayload is empty", nil)
	}

	if stage, _ := unsigned.ChainSpecific["inscription_stage"].(string); stage == "reveal" {
		return b.signReveal(ctx, unsigned, sign)
	}

	digest := doubleSHA256(unsigned.SigningPayload)
	path := addressderiver.Path(domain.ChangeDestination)
	signature, err := sign.Sign(ctx, digest, path)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_SIGNING_FAILED", fmt.Sprintf("signing failed: %v", err), err)
	}

	serializedTx := unsigned.SigningPayload
	txHash := ComputeTransactionHash(serializedTx)

	return &chainadapter.SignedTransaction{
		UnsignedTx:   unsigned,
		Signature:    signature,
		SignedBy:     unsigned.From,
		TxHash:       txHash,
		SerializedTx: serializedTx,
		SignedAt:     unsigned.CreatedAt,
	}, nil
}

// signReveal signs a BRC-20 reveal transaction's taproot script-path
// input: it recomputes the BIP341 tapscript sighash over the decoded
// transaction (rather than double-SHA256 over the raw payload, which
// is only correct for ordinary key-path spends), asks sign for a
// Schnorr signature over that digest, and splices
// (signature, leaf script, control block) into the input's witness
// before reserializing.
func (b *Adapter) signReveal(ctx context.Context, unsigned *chainadapter.UnsignedTransaction, sign chainadapter.Signer) (*chainadapter.SignedTransaction, error) {
	leafScript, _ := unsigned.ChainSpecific["leaf_script"].([]byte)
	controlBlock, _ := unsigned.ChainSpecific["control_block"].([]byte)
	commitPkScript, _ := unsigned.ChainSpecific["commit_pkscript"].([]byte)
	commitValue, _ := unsigned.ChainSpecific["commit_value"].(int64)
	if len(leafScript) == 0 || len(controlBlock) == 0 || len(commitPkScript) == 0 || commitValue == 0 {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "reveal transaction missing taproot witness context", nil)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(unsigned.SigningPayload)); err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to decode reveal transaction", err)
	}

	digest, err := RevealSighash(tx, commitPkScript, commitValue, leafScript)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, fmt.Sprintf("computing tapscript sighash: %v", err), err)
	}

	path := addressderiver.Path(domain.ChangeDestination)
	signature, err := sign.SignSchnorr(ctx, digest, path)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_SIGNING_FAILED", fmt.Sprintf("schnorr signing failed: %v", err), err)
	}

	tx.TxIn[0].Witness = wire.TxWitness{signature, leafScript, controlBlock}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to serialize signed reveal transaction", err)
	}
	serializedTx := buf.Bytes()
	txHash := ComputeTransactionHash(serializedTx)

	return &chainadapter.SignedTransaction{
		UnsignedTx:   unsigned,
		Signature:    signature,
		SignedBy:     unsigned.From,
		TxHash:       txHash,
		SerializedTx: serializedTx,
		SignedAt:     unsigned.CreatedAt,
	}, nil
}

// Broadcast submits a signed Bitcoin transaction to the network, idempotently.
func (b *Adapter) Broadcast(ctx context.Context, signed *chainadapter.SignedTransaction) (*chainadapter.BroadcastReceipt, error) {
	if signed == nil || len(signed.SerializedTx) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_INPUT", "signed transaction is empty", nil)
	}

	txHash := signed.TxHash

	if b.txStore != nil {
		if existing, err := b.txStore.Get(txHash); err == nil && existing != nil && existing.RetryCount > 0 {
			return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: b.chainID, SubmittedAt: existing.LastRetry}, nil
		}
	}

	txHex := fmt.Sprintf("%x", signed.SerializedTx)
	broadcastedHash, err := b.rpcHelper.SendRawTransaction(ctx, txHex)
	if err != nil {
		if contains(err.Error(), "already") {
			broadcastedHash = txHash
		} else {
			return nil, err
		}
	}
	if broadcastedHash != txHash {
		return nil, chainadapter.NewNonRetryableError(
			"ERR_HASH_MISMATCH",
			fmt.Sprintf("broadcasted tx hash %s doesn't match signed tx hash %s", broadcastedHash, txHash),
			nil,
		)
	}

	if b.txStore != nil {
		now := time.Now()
		state := &storage.TxState{
			TxHash:     txHash,
			ChainID:    b.chainID,
			RawTx:      signed.SerializedTx,
			RetryCount: 1,
			FirstSeen:  now,
			LastRetry:  now,
			Status:     storage.TxStatusPending,
		}
		if existing, err := b.txStore.Get(txHash); err == nil && existing != nil {
			state.RetryCount = existing.RetryCount + 1
			state.FirstSeen = existing.FirstSeen
		}
		_ = b.txStore.Set(txHash, state)
	}

	return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: b.chainID, SubmittedAt: time.Now()}, nil
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && findSubstring(s, substr)
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// ConfirmTx retrieves the current confirmation status of a Bitcoin transaction.
func (b *Adapter) ConfirmTx(ctx context.Context, txHash string) (*chainadapter.TransactionStatus, error) {
	txResult, err := b.rpcHelper.GetRawTransaction(ctx, txHash, true)
	if err != nil {
		return nil, err
	}

	var status chainadapter.TxStatus
	var blockNumber *uint64
	var blockHash *string

	switch {
	case txResult.Confirmations == 0:
		status = chainadapter.TxStatusPending
	case txResult.Confirmations >= b.Capabilities().MinConfirmations:
		status = chainadapter.TxStatusFinalized
	default:
		status = chainadapter.TxStatusConfirmed
	}

	if txResult.BlockHash != "" {
		blockHash = &txResult.BlockHash
		if blockResult, err := b.rpcHelper.GetBlock(ctx, txResult.BlockHash, 1); err == nil {
			h := uint64(blockResult.Height)
			blockNumber = &h
		}
	}

	return &chainadapter.TransactionStatus{
		TxHash:        txHash,
		Status:        status,
		Confirmations: txResult.Confirmations,
		BlockNumber:   blockNumber,
		BlockHash:     blockHash,
		UpdatedAt:     time.Now(),
	}, nil
}

// SubscribeStatus streams Bitcoin transaction status updates via HTTP polling.
func (b *Adapter) SubscribeStatus(ctx context.Context, txHash string) (<-chan *chainadapter.TransactionStatus, error) {
	statusChan := make(chan *chainadapter.TransactionStatus, 10)

	initialStatus, err := b.ConfirmTx(ctx, txHash)
	if err != nil {
		close(statusChan)
		return statusChan, err
	}

	go func() {
		defer close(statusChan)

		select {
		case statusChan <- initialStatus:
		case <-ctx.Done():
			return
		}

		lastStatus := initialStatus.Status
		lastConfirmations := initialStatus.Confirmations
		pollInterval := 10 * time.Second
		maxPollInterval := 60 * time.Second
		errorBackoff := 5 * time.Second

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := b.ConfirmTx(ctx, txHash)
				if err != nil {
					ticker.Reset(errorBackoff)
					if errorBackoff < maxPollInterval {
						errorBackoff *= 2
					}
					continue
				}
				errorBackoff = 5 * time.Second

				if status.Status != lastStatus || status.Confirmations != lastConfirmations {
					lastStatus = status.Status
					lastConfirmations = status.Confirmations

					select {
					case statusChan <- status:
					case <-ctx.Done():
						return
					default:
					}

					if status.Status == chainadapter.TxStatusFinalized {
						ticker.Reset(maxPollInterval)
					}
				}
			}
		}
	}()

	return statusChan, nil
}

func doubleSHA256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}
