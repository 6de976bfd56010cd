// Package deposit reconciles a chain adapter's raw ObserveDeposits scan
// against the event log: deduping already-seen candidates, gating a
// fresh one on confirmation depth (and, where a chain family needs more
// than depth alone, a Validator), pulling an oracle-attributed balance
// for Runes-bearing deposits, and recording the accept/finalize
// lifecycle as events so a crash mid-reconciliation resumes correctly
// from whatever the log last durably recorded.
//
// Grounded on internal/ticket.Processor's record-then-apply pairing and
// on original_source/customs/bitcoin_runes/src/updates/generate_ticket.rs
// and original_source/customs/doge/src/dogeoin_to_custom.rs for the
// three-mode split spec.md §4.8 describes (Runes/native BTC, BRC-20,
// Dogecoin).
package deposit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/octopus-network/omnity-bridge-core/internal/confirm"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
	"github.com/octopus-network/omnity-bridge-core/internal/hub"
	"github.com/octopus-network/omnity-bridge-core/internal/state"
)

// Validator performs a chain-family-specific acceptance check on a
// candidate beyond confirmation depth, such as Dogecoin's Merkle audit
// path against a trusted block header (see DogecoinMerkleValidator). A
// false, nil result means "not yet acceptable, try again later", not a
// permanent rejection.
type Validator interface {
	Validate(ctx context.Context, req domain.GenTicketRequest) (bool, error)
}

// DepositScanner is the subset of chainadapter.Capability the observer
// needs: a raw, unvalidated scan of the chain for inbound transfers.
type DepositScanner interface {
	ObserveDeposits(ctx context.Context) ([]domain.GenTicketRequest, error)
}

// Observer reconciles one chain adapter's deposit candidates into
// accepted-then-finalized GenTicketRequests.
type Observer struct {
	Capability DepositScanner
	Hub        hub.Client
	State      *state.State
	Log        *eventlog.Log
	ChainID    string

	// Confirmations gates a pending candidate on confirmation depth. Nil
	// skips the gate (not expected outside tests).
	Confirmations    confirm.UTXOConfirmationSource
	MinConfirmations int

	// Validator runs after the confirmation gate passes. Nil means
	// confirmation depth alone is sufficient (Runes/native-BTC mode).
	Validator Validator

	// RunesMode pulls an oracle-attributed Runes balance before
	// finalizing, per spec.md §4.8 mode 1. False for plain UTXO chains
	// (Dogecoin) that settle native value, not a Runes token.
	RunesMode bool
}

// PullAndValidate scans for new deposit candidates, advances any
// already-pending one that now clears its gates, and returns the
// requests finalized on this call (ready for the caller to turn into
// tickets and submit to the Hub).
func (o *Observer) PullAndValidate(ctx context.Context) ([]domain.GenTicketRequest, error) {
	candidates, err := o.Capability.ObserveDeposits(ctx)
	if err != nil {
		return nil, fmt.Errorf("deposit: observing %s: %w", o.ChainID, err)
	}

	var finalized []domain.GenTicketRequest
	for _, c := range candidates {
		if _, pending := o.State.PendingGenTicketRequests[c.Txid]; pending {
			req, err := o.progress(ctx, c.Txid)
			if err != nil {
				return finalized, err
			}
			if req != nil {
				finalized = append(finalized, *req)
			}
			continue
		}
		if _, done := o.State.FinalizedGenTickets[c.Txid]; done {
			continue
		}
		if err := o.accept(c); err != nil {
			return finalized, fmt.Errorf("deposit: accepting %s: %w", c.Txid, err)
		}
	}
	return finalized, nil
}

func (o *Observer) accept(c domain.GenTicketRequest) error {
	req := c
	req.Status = domain.GenTicketPending
	ev := eventlog.Event{Kind: eventlog.KindAcceptedGenTicketRequestV2, GenTicketRequest: &req}
	if err := o.Log.Record(ev); err != nil {
		return err
	}
	if err := o.State.Apply(ev); err != nil {
		return err
	}
	log.Info().Str("chain", o.ChainID).Str("txid", c.Txid).Msg("deposit: candidate accepted")
	return nil
}

// progress advances one already-accepted request towards finality,
// returning the finalized request if this call is what tipped it over
// (nil otherwise). Every step is idempotent: re-running progress on a
// request that already cleared a gate on a prior call simply re-checks
// and re-passes it, so polling on a timer is safe.
func (o *Observer) progress(ctx context.Context, txid string) (*domain.GenTicketRequest, error) {
	req, ok := o.State.PendingGenTicketRequests[txid]
	if !ok {
		return nil, nil
	}
	if len(req.NewUtxos) == 0 {
		return nil, fmt.Errorf("deposit: pending request %s has no utxos", txid)
	}
	sourceTxid := req.NewUtxos[0].Txid

	if o.Confirmations != nil {
		confirmations, found, err := o.Confirmations.GetRawTransactionConfirmations(ctx, sourceTxid)
		if err != nil {
			return nil, fmt.Errorf("deposit: checking confirmations for %s: %w", txid, err)
		}
		if !found || confirmations < o.MinConfirmations {
			return nil, nil
		}
	}

	if o.Validator != nil {
		ok, err := o.Validator.Validate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("deposit: validating %s: %w", txid, err)
		}
		if !ok {
			return nil, nil
		}
	}

	var balances []domain.RunesBalance
	if o.RunesMode {
		bal, err := o.Hub.PullRunesOracleBalance(ctx, sourceTxid, req.TokenID)
		if err != nil {
			return nil, fmt.Errorf("deposit: pulling oracle balance for %s: %w", txid, err)
		}
		balances = []domain.RunesBalance{bal}
		balEv := eventlog.Event{
			Kind: eventlog.KindUpdatedRunesBalance,
			UpdatedRunesBalance: &eventlog.UpdatedRunesBalancePayload{
				Txid:    sourceTxid,
				Balance: bal,
			},
		}
		if err := o.Log.Record(balEv); err != nil {
			return nil, err
		}
		if err := o.State.Apply(balEv); err != nil {
			return nil, err
		}
	}

	finEv := eventlog.Event{
		Kind: eventlog.KindFinalizedTicketRequest,
		FinalizedRequest: &eventlog.FinalizedTicketRequestPayload{
			Txid:     txid,
			Balances: balances,
		},
	}
	if err := o.Log.Record(finEv); err != nil {
		return nil, err
	}
	if err := o.State.Apply(finEv); err != nil {
		return nil, err
	}

	req.Status = domain.GenTicketFinalized
	log.Info().Str("chain", o.ChainID).Str("txid", txid).Msg("deposit: finalized")
	return &req, nil
}
