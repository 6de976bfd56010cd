// Package hub talks to the central Hub: pulling directives/tickets
// addressed to this chain, and pushing tickets/generate-ticket
// confirmations the other way. Grounded on the RPC client shape in
// src/chainadapter/rpc/client.go (teacher), adapted from a generic
// JSON-RPC client to the Hub's specific operation set
// (original_source/hub/src/event.rs, original_source/hub/src/lib.rs).
package hub

import (
	"context"
	"fmt"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

// CallError wraps a failed Hub RPC with the method name, mirroring the
// original Rust CallError{method, reason} so that callers can log and
// retry consistently regardless of which operation failed.
type CallError struct {
	Method string
	Reason error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("hub: %s: %v", e.Method, e.Reason)
}

func (e *CallError) Unwrap() error { return e.Reason }

// Client is the full set of operations a customs or route process needs
// from the Hub. Implementations: HTTPClient (production, retryablehttp
// + backoff) and Fake (in-memory, for tests).
type Client interface {
	// QueryDirectives returns up to MaxEventsPerQuery directives for
	// chainID starting at offset, ordered by seq.
	QueryDirectives(ctx context.Context, chainID string, offset uint64, limit int) ([]domain.Directive, error)

	// QueryTickets returns up to MaxEventsPerQuery tickets addressed to
	// chainID starting at offset, ordered by seq.
	QueryTickets(ctx context.Context, chainID string, offset uint64, limit int) ([]domain.Ticket, error)

	// SendTicket submits a new ticket to the Hub (customs -> hub, a
	// deposit observed on a settlement chain becoming a transfer
	// intent). Idempotent on TicketID: resubmitting an already-accepted
	// ticket is not an error.
	SendTicket(ctx context.Context, t domain.Ticket) error

	// UpdateTicketStatus reports a terminal or intermediate status for
	// a ticket this chain is executing (route -> hub), e.g. Finalized
	// after a mint confirms.
	UpdateTicketStatus(ctx context.Context, ticketID string, status string) error

	// PullRunesOracleBalance asks the runes-oracle-backed Hub endpoint
	// for the authoritative balance of a rune at a given txid (spec.md
	// §4.8 mode 1).
	PullRunesOracleBalance(ctx context.Context, txid, runeID string) (domain.RunesBalance, error)
}
