// Package ticket drives the Ticket side of the bridge: on a route, pulls
// tickets addressed to this chain and tracks them through mint/release
// to finality; on a customs, submits tickets for confirmed deposits and
// is idempotent against resubmission of an already-finalized one.
// Grounded on the teacher's TransactionStateStore lifecycle
// (src/chainadapter/storage/store.go) generalized from one chain's
// local tx bookkeeping to the Hub's cross-chain ticket bookkeeping.
package ticket

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
	"github.com/octopus-network/omnity-bridge-core/internal/hub"
	"github.com/octopus-network/omnity-bridge-core/internal/state"
)

// Processor pulls/pushes tickets for one chain.
type Processor struct {
	Hub     hub.Client
	State   *state.State
	Log     *eventlog.Log
	ChainID string

	// BatchSize caps a single pull; 0 uses eventlog.MaxEventsPerQuery.
	BatchSize int
}

// PullAndApply fetches the next batch of tickets addressed to ChainID
// and records each as pending, advancing the consume-ticket sequence
// one ticket at a time (same crash-safety rationale as
// internal/directive.Processor.PullAndApply).
func (p *Processor) PullAndApply(ctx context.Context) (int, error) {
	limit := p.BatchSize
	if limit <= 0 {
		limit = eventlog.MaxEventsPerQuery
	}

	_, nextSeq, _, _ := p.State.Snapshot()
	tickets, err := p.Hub.QueryTickets(ctx, p.ChainID, nextSeq, limit)
	if err != nil {
		return 0, fmt.Errorf("ticket: pulling from hub: %w", err)
	}

	applied := 0
	for i, t := range tickets {
		seq := nextSeq + uint64(i) + 1
		if p.State.FinalizedTickets[t.TicketID] {
			// Already handled in a prior run; just advance past it.
			if err := p.advanceTicketSeq(seq); err != nil {
				return applied, err
			}
			continue
		}
		if err := p.applyOne(t, seq); err != nil {
			return applied, fmt.Errorf("ticket: applying seq %d: %w", seq, err)
		}
		applied++
	}
	return applied, nil
}

func (p *Processor) applyOne(t domain.Ticket, seq uint64) error {
	ticket := t
	ev := eventlog.Event{Kind: eventlog.KindPendingTicket, Ticket: &ticket}
	if err := p.Log.Record(ev); err != nil {
		return err
	}
	if err := p.State.Apply(ev); err != nil {
		return err
	}
	if err := p.advanceTicketSeq(seq); err != nil {
		return err
	}
	log.Info().Str("chain", p.ChainID).Str("ticket_id", t.TicketID).Uint64("seq", seq).Msg("ticket: pending")
	return nil
}

// advanceTicketSeq advances both the pulled and consume ticket cursors to
// seq. The pulled cursor must move first: State.Apply rejects a consume
// advance that would exceed it.
func (p *Processor) advanceTicketSeq(seq uint64) error {
	pulled := eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: seq}
	if err := p.Log.Record(pulled); err != nil {
		return err
	}
	if err := p.State.Apply(pulled); err != nil {
		return err
	}

	advance := eventlog.Event{Kind: eventlog.KindUpdateNextConsumeTicket, NextSeq: seq}
	if err := p.Log.Record(advance); err != nil {
		return err
	}
	return p.State.Apply(advance)
}

// SubmitTicket pushes a newly-observed deposit's ticket to the Hub. It is
// idempotent: resubmitting a ticket id that is already finalized is a
// silent no-op, so a customs safely re-runs this after a crash without
// double-crediting.
func (p *Processor) SubmitTicket(ctx context.Context, t domain.Ticket) error {
	if p.State.FinalizedTickets[t.TicketID] {
		log.Debug().Str("ticket_id", t.TicketID).Msg("ticket: already finalized, skipping resubmit")
		return nil
	}
	if err := p.Hub.SendTicket(ctx, t); err != nil {
		return fmt.Errorf("ticket: submitting %s: %w", t.TicketID, err)
	}
	return nil
}

// Finalize marks ticketID as finalized against txHash (the mint/release
// transaction that settled it) and reports the outcome back to the Hub.
func (p *Processor) Finalize(ctx context.Context, ticketID, txHash string) error {
	hashEv := eventlog.Event{Kind: eventlog.KindUpdatedTxHash, TicketID: ticketID, TxHash: txHash}
	if err := p.Log.Record(hashEv); err != nil {
		return err
	}
	if err := p.State.Apply(hashEv); err != nil {
		return err
	}

	finalEv := eventlog.Event{Kind: eventlog.KindFinalizeTicket, TicketID: ticketID}
	if err := p.Log.Record(finalEv); err != nil {
		return err
	}
	if err := p.State.Apply(finalEv); err != nil {
		return err
	}

	if err := p.Hub.UpdateTicketStatus(ctx, ticketID, "Finalized"); err != nil {
		return fmt.Errorf("ticket: reporting finalization of %s: %w", ticketID, err)
	}
	log.Info().Str("ticket_id", ticketID).Str("tx_hash", txHash).Msg("ticket: finalized")
	return nil
}
