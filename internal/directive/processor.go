// Package directive pulls configuration-change directives from the Hub
// and folds them into local state: chain/token registry updates, chain
// activation toggles, and fee schedule changes. Grounded on the
// teacher's request/response processing shape in
// src/chainadapter/adapter.go (Build/Estimate pipeline), adapted to a
// pull-apply-advance loop over Hub-delivered directives
// (original_source/hub/src/event.rs directive variants).
package directive

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
	"github.com/octopus-network/omnity-bridge-core/internal/hub"
	"github.com/octopus-network/omnity-bridge-core/internal/state"
)

// Processor pulls directives addressed to one chain from the Hub,
// applies them to State, and advances NextDirectiveSeq one directive at
// a time so a crash mid-batch resumes exactly where it left off on
// replay.
type Processor struct {
	Hub     hub.Client
	State   *state.State
	Log     *eventlog.Log
	ChainID string

	// BatchSize caps a single pull; 0 uses eventlog.MaxEventsPerQuery.
	BatchSize int
}

// PullAndApply fetches the next batch of directives starting at
// State.NextDirectiveSeq and applies them in order. It returns the
// number of directives applied. Safe to call repeatedly from a ticker;
// an empty batch is a normal, silent no-op.
func (p *Processor) PullAndApply(ctx context.Context) (int, error) {
	limit := p.BatchSize
	if limit <= 0 {
		limit = eventlog.MaxEventsPerQuery
	}

	nextSeq, _, _, _ := p.State.Snapshot()
	directives, err := p.Hub.QueryDirectives(ctx, p.ChainID, nextSeq, limit)
	if err != nil {
		return 0, fmt.Errorf("directive: pulling from hub: %w", err)
	}

	applied := 0
	for i, d := range directives {
		seq := nextSeq + uint64(i) + 1
		if err := p.applyOne(d, seq); err != nil {
			return applied, fmt.Errorf("directive: applying seq %d: %w", seq, err)
		}
		applied++
	}
	return applied, nil
}

func (p *Processor) applyOne(d domain.Directive, seq uint64) error {
	ev, err := eventForDirective(d)
	if err != nil {
		return err
	}
	if err := p.Log.Record(ev); err != nil {
		return err
	}
	if err := p.State.Apply(ev); err != nil {
		return err
	}

	pulled := eventlog.Event{Kind: eventlog.KindUpdateNextDirectiveSeq, NextSeq: seq}
	if err := p.Log.Record(pulled); err != nil {
		return err
	}
	if err := p.State.Apply(pulled); err != nil {
		return err
	}

	advance := eventlog.Event{Kind: eventlog.KindUpdateNextConsumeDirective, NextSeq: seq}
	if err := p.Log.Record(advance); err != nil {
		return err
	}
	if err := p.State.Apply(advance); err != nil {
		return err
	}

	log.Info().Str("chain", p.ChainID).Uint64("seq", seq).Str("kind", string(d.Kind)).Msg("directive: applied")
	return nil
}

func eventForDirective(d domain.Directive) (eventlog.Event, error) {
	switch d.Kind {
	case domain.DirAddChain:
		if d.Chain == nil {
			return eventlog.Event{}, fmt.Errorf("AddChain directive missing chain payload")
		}
		return eventlog.Event{Kind: eventlog.KindAddedChain, Chain: d.Chain}, nil
	case domain.DirUpdateChain:
		if d.Chain == nil {
			return eventlog.Event{}, fmt.Errorf("UpdateChain directive missing chain payload")
		}
		return eventlog.Event{Kind: eventlog.KindUpdatedChain, Chain: d.Chain}, nil
	case domain.DirAddToken:
		if d.Token == nil {
			return eventlog.Event{}, fmt.Errorf("AddToken directive missing token payload")
		}
		return eventlog.Event{Kind: eventlog.KindAddedToken, Token: d.Token}, nil
	case domain.DirUpdateToken:
		if d.Token == nil {
			return eventlog.Event{}, fmt.Errorf("UpdateToken directive missing token payload")
		}
		return eventlog.Event{Kind: eventlog.KindUpdatedToken, Token: d.Token}, nil
	case domain.DirToggleChainState:
		if d.Toggle == nil {
			return eventlog.Event{}, fmt.Errorf("ToggleChainState directive missing toggle payload")
		}
		return eventlog.Event{Kind: eventlog.KindToggleChainState, Toggle: d.Toggle}, nil
	case domain.DirUpdateFee:
		if d.Fee == nil {
			return eventlog.Event{}, fmt.Errorf("UpdateFee directive missing fee payload")
		}
		return eventlog.Event{Kind: eventlog.KindUpdatedFee, Fee: d.Fee}, nil
	default:
		return eventlog.Event{}, fmt.Errorf("unknown directive kind %q", d.Kind)
	}
}
