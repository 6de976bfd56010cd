// Package confirm tracks a submitted release transaction from broadcast
// to finality: for UTXO chains (bitcoin/dogecoin), polling confirmation
// depth and flagging a stuck transaction for RBF replacement once it has
// sat unconfirmed for 6x the chain's finalization-time estimate; for EVM
// chains, polling several independent RPC providers' receipts and
// requiring a quorum of them to agree before calling a transaction
// confirmed. Grounded on spec.md §4.7 and, for the EVM log-topic/receipt
// shape, original_source/route/ethereum/src/evm_scan.rs and
// original_source/route/bitfinity/src/evm_scan.rs.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
)

// Outcome is the classification confirmation tracking assigns a single
// submitted transaction on one poll.
type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeConfirmed         Outcome = "confirmed"
	OutcomeFinalized         Outcome = "finalized"
	OutcomeFailed            Outcome = "failed"
	OutcomeNeedsReplacement  Outcome = "needs_replacement" // stuck past the RBF window
)

// Config bundles the thresholds spec.md names for confirmation tracking.
type Config struct {
	MinConfirmations         int
	FinalizationTimeEstimate time.Duration // expected time for one confirmation
	MinimumResponseCount     int           // EVM multi-provider quorum size
	TotalRequiredCount       int           // EVM providers queried per poll
}

// replacementWindow is spec.md's "6x the finalization time estimate"
// before a still-unconfirmed transaction is flagged for RBF.
const replacementWindowMultiplier = 6

func (c Config) replacementWindow() time.Duration {
	return c.FinalizationTimeEstimate * replacementWindowMultiplier
}

// UTXOConfirmationSource is the subset of bitcoin/dogecoin's RPCHelper
// the tracker needs: current confirmation depth for one txid.
type UTXOConfirmationSource interface {
	GetRawTransactionConfirmations(ctx context.Context, txid string) (confirmations int, found bool, err error)
}

// UTXOTracker polls one UTXO-chain RPC source for confirmation depth and
// flags a transaction stuck past the replacement window.
type UTXOTracker struct {
	cfg     Config
	source  UTXOConfirmationSource
	txStore storage.TransactionStateStore
}

// NewUTXOTracker builds a confirmation tracker for a Bitcoin/Dogecoin-
// family chain.
func NewUTXOTracker(cfg Config, source UTXOConfirmationSource, txStore storage.TransactionStateStore) *UTXOTracker {
	return &UTXOTracker{cfg: cfg, source: source, txStore: txStore}
}

// Poll checks one submitted transaction's confirmation depth and returns
// its classification, updating the tx store's status as a side effect.
func (t *UTXOTracker) Poll(ctx context.Context, txHash string) (Outcome, error) {
	state, err := t.txStore.Get(txHash)
	if err != nil {
		return OutcomePending, fmt.Errorf("confirm: loading tx state for %s: %w", txHash, err)
	}
	if state == nil {
		return OutcomePending, fmt.Errorf("confirm: no tracked state for %s", txHash)
	}

	confirmations, found, err := t.source.GetRawTransactionConfirmations(ctx, txHash)
	if err != nil {
		var chainErr *chainadapter.ChainError
		if errors.As(err, &chainErr) && chainErr.Code == chainadapter.ErrCodeTxNotFound {
			found = false
		} else {
			return OutcomePending, fmt.Errorf("confirm: checking confirmations for %s: %w", txHash, err)
		}
	}

	now := time.Now()
	if !found {
		if now.Sub(state.FirstSeen) > t.cfg.replacementWindow() {
			return OutcomeNeedsReplacement, nil
		}
		return OutcomePending, nil
	}

	outcome := OutcomePending
	switch {
	case confirmations >= t.cfg.MinConfirmations:
		outcome = OutcomeFinalized
		state.Status = storage.TxStatusFinalized
	case confirmations > 0:
		outcome = OutcomeConfirmed
		state.Status = storage.TxStatusConfirmed
	default:
		if now.Sub(state.FirstSeen) > t.cfg.replacementWindow() {
			outcome = OutcomeNeedsReplacement
		}
	}

	state.LastRetry = now
	if err := t.txStore.Set(txHash, state); err != nil {
		return outcome, fmt.Errorf("confirm: persisting tx state for %s: %w", txHash, err)
	}
	return outcome, nil
}

// ReceiptSource is the subset of evm's RPCHelper the tracker needs from
// one RPC provider: a transaction's mined status, if any.
type ReceiptSource interface {
	GetTransactionReceiptStatus(ctx context.Context, txHash string) (mined bool, success bool, err error)
}

// EVMTracker polls several independent RPC providers for a transaction's
// receipt and requires a quorum of them to agree before reporting
// confirmed/finalized, guarding against one lagging or lying provider.
type EVMTracker struct {
	cfg       Config
	providers []ReceiptSource
	txStore   storage.TransactionStateStore
}

// NewEVMTracker builds a multi-provider confirmation tracker. len(providers)
// should be >= cfg.TotalRequiredCount; Poll queries the first
// TotalRequiredCount of them each round.
func NewEVMTracker(cfg Config, providers []ReceiptSource, txStore storage.TransactionStateStore) *EVMTracker {
	return &EVMTracker{cfg: cfg, providers: providers, txStore: txStore}
}

// Poll queries up to cfg.TotalRequiredCount providers for txHash's
// receipt and classifies the transaction by consensus: a status only
// counts once at least cfg.MinimumResponseCount providers agree on it.
func (t *EVMTracker) Poll(ctx context.Context, txHash string) (Outcome, error) {
	state, err := t.txStore.Get(txHash)
	if err != nil {
		return OutcomePending, fmt.Errorf("confirm: loading tx state for %s: %w", txHash, err)
	}
	if state == nil {
		return OutcomePending, fmt.Errorf("confirm: no tracked state for %s", txHash)
	}

	queried := t.providers
	if len(queried) > t.cfg.TotalRequiredCount && t.cfg.TotalRequiredCount > 0 {
		queried = queried[:t.cfg.TotalRequiredCount]
	}

	var minedSuccess, minedFailed, notMined int
	for _, p := range queried {
		mined, success, err := p.GetTransactionReceiptStatus(ctx, txHash)
		if err != nil {
			continue // treat a provider error as a non-vote, not a failure
		}
		switch {
		case !mined:
			notMined++
		case success:
			minedSuccess++
		default:
			minedFailed++
		}
	}

	now := time.Now()
	outcome := OutcomePending
	switch {
	case minedSuccess >= t.cfg.MinimumResponseCount:
		outcome = OutcomeFinalized
		state.Status = storage.TxStatusFinalized
	case minedFailed >= t.cfg.MinimumResponseCount:
		outcome = OutcomeFailed
		state.Status = storage.TxStatusFailed
	default:
		if now.Sub(state.FirstSeen) > t.cfg.replacementWindow() {
			outcome = OutcomeNeedsReplacement
		}
	}

	state.LastRetry = now
	if err := t.txStore.Set(txHash, state); err != nil {
		return outcome, fmt.Errorf("confirm: persisting tx state for %s: %w", txHash, err)
	}
	return outcome, nil
}
