package hub

import (
	"context"
	"sync"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

// Fake is an in-memory Client for tests and local development; it never
// touches the network. Directives and tickets are queued by the test
// via PushDirective/PushTicket and served out in FIFO order, matching
// the real Hub's seq-ordered delivery.
type Fake struct {
	mu         sync.Mutex
	directives []domain.Directive
	tickets    []domain.Ticket

	SentTickets  []domain.Ticket
	TicketStatus map[string]string
	RunesBalances map[string]domain.RunesBalance
}

// NewFake returns a ready-to-use Fake.
func NewFake() *Fake {
	return &Fake{
		TicketStatus:  make(map[string]string),
		RunesBalances: make(map[string]domain.RunesBalance),
	}
}

// PushDirective enqueues a directive to be returned by the next
// QueryDirectives call whose offset reaches it.
func (f *Fake) PushDirective(d domain.Directive) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.directives = append(f.directives, d)
}

// PushTicket enqueues a ticket to be returned by the next QueryTickets
// call whose offset reaches it.
func (f *Fake) PushTicket(t domain.Ticket) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets = append(f.tickets, t)
}

func (f *Fake) QueryDirectives(_ context.Context, _ string, offset uint64, limit int) ([]domain.Directive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > DefaultQueryLimit {
		limit = DefaultQueryLimit
	}
	if offset >= uint64(len(f.directives)) {
		return nil, nil
	}
	end := offset + uint64(limit)
	if end > uint64(len(f.directives)) {
		end = uint64(len(f.directives))
	}
	out := make([]domain.Directive, end-offset)
	copy(out, f.directives[offset:end])
	return out, nil
}

func (f *Fake) QueryTickets(_ context.Context, _ string, offset uint64, limit int) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 || limit > DefaultQueryLimit {
		limit = DefaultQueryLimit
	}
	if offset >= uint64(len(f.tickets)) {
		return nil, nil
	}
	end := offset + uint64(limit)
	if end > uint64(len(f.tickets)) {
		end = uint64(len(f.tickets))
	}
	out := make([]domain.Ticket, end-offset)
	copy(out, f.tickets[offset:end])
	return out, nil
}

func (f *Fake) SendTicket(_ context.Context, t domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.SentTickets {
		if existing.TicketID == t.TicketID {
			return nil
		}
	}
	f.SentTickets = append(f.SentTickets, t)
	return nil
}

func (f *Fake) UpdateTicketStatus(_ context.Context, ticketID string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TicketStatus[ticketID] = status
	return nil
}

func (f *Fake) PullRunesOracleBalance(_ context.Context, txid, runeID string) (domain.RunesBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.RunesBalances[txid]; ok {
		return b, nil
	}
	return domain.RunesBalance{RuneID: runeID, Amount: "0"}, nil
}

// DefaultQueryLimit bounds Fake's page size the same way
// eventlog.MaxEventsPerQuery bounds the real log.
const DefaultQueryLimit = 2000

var _ Client = (*Fake)(nil)
var _ Client = (*HTTPClient)(nil)
