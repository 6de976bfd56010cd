package ticket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
	"github.com/octopus-network/omnity-bridge-core/internal/hub"
	"github.com/octopus-network/omnity-bridge-core/internal/state"
)

func newProcessor(t *testing.T) (*Processor, *hub.Fake) {
	t.Helper()
	l, err := eventlog.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, l.Record(eventlog.Event{Kind: eventlog.KindInit, Init: &eventlog.InitArgs{ChainID: "eICP", ChainType: domain.ChainTypeExecution}}))

	s := state.New()
	require.NoError(t, l.Replay(s.Apply))

	f := hub.NewFake()
	return &Processor{Hub: f, State: s, Log: l, ChainID: "eICP"}, f
}

func TestPullAndApplyQueuesPendingTicket(t *testing.T) {
	p, f := newProcessor(t)
	f.PushTicket(domain.Ticket{TicketID: "t1", Action: domain.ActionMint, Amount: "100"})

	n, err := p.PullAndApply(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, p.State.PendingTickets, "t1")

	_, _, _, consumeTicketSeq := p.State.Snapshot()
	require.EqualValues(t, 1, consumeTicketSeq)
}

func TestFinalizeMarksFinalizedAndReportsToHub(t *testing.T) {
	p, f := newProcessor(t)
	f.PushTicket(domain.Ticket{TicketID: "t1", Action: domain.ActionMint, Amount: "100"})
	_, err := p.PullAndApply(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Finalize(context.Background(), "t1", "0xdeadbeef"))
	require.True(t, p.State.FinalizedTickets["t1"])
	require.NotContains(t, p.State.PendingTickets, "t1")
	require.Equal(t, "Finalized", f.TicketStatus["t1"])
}

func TestPullAndApplySkipsAlreadyFinalizedTicket(t *testing.T) {
	p, f := newProcessor(t)
	f.PushTicket(domain.Ticket{TicketID: "t1", Action: domain.ActionMint, Amount: "100"})
	_, err := p.PullAndApply(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Finalize(context.Background(), "t1", "0xabc"))

	f.PushTicket(domain.Ticket{TicketID: "t1", Action: domain.ActionMint, Amount: "100"})
	n, err := p.PullAndApply(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	_, _, _, consumeTicketSeq := p.State.Snapshot()
	require.EqualValues(t, 2, consumeTicketSeq)
}

func TestSubmitTicketIsIdempotentAgainstFinalized(t *testing.T) {
	p, f := newProcessor(t)
	p.State.FinalizedTickets["t1"] = true

	require.NoError(t, p.SubmitTicket(context.Background(), domain.Ticket{TicketID: "t1"}))
	require.Empty(t, f.SentTickets)

	require.NoError(t, p.SubmitTicket(context.Background(), domain.Ticket{TicketID: "t2"}))
	require.Len(t, f.SentTickets, 1)
}
