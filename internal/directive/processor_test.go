package directive

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
	require.NoError(t, l.Record(eventlog.Event{Kind: eventlog.KindInit, Init: &eventlog.InitArgs{ChainID: "Bitcoin", ChainType: domain.ChainTypeSettlement}}))

	s := state.New()
	require.NoError(t, l.Replay(s.Apply))

	f := hub.NewFake()
	return &Processor{Hub: f, State: s, Log: l, ChainID: "Bitcoin"}, f
}

func TestPullAndApplyAddsChainAndAdvancesSeq(t *testing.T) {
	p, f := newProcessor(t)
	f.PushDirective(domain.Directive{Kind: domain.DirAddChain, Chain: &domain.Chain{ChainID: "eICP", ChainType: domain.ChainTypeExecution}})
	f.PushDirective(domain.Directive{Kind: domain.DirUpdateFee, Fee: &domain.FeeUpdate{SrcChain: "Bitcoin", DstChain: "eICP", TokenID: "BTC", Fee: "10"}})

	n, err := p.PullAndApply(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Contains(t, p.State.Chains, "eICP")
	fee, ok := p.State.FeeFor("Bitcoin", "eICP", "BTC")
	require.True(t, ok)
	require.Equal(t, "10", fee)

	_, _, consumeSeq, _ := p.State.Snapshot()
	require.EqualValues(t, 2, consumeSeq)
}

func TestPullAndApplyIsReplaySafe(t *testing.T) {
	p, f := newProcessor(t)
	f.PushDirective(domain.Directive{Kind: domain.DirAddChain, Chain: &domain.Chain{ChainID: "eICP", ChainType: domain.ChainTypeExecution}})

	_, err := p.PullAndApply(context.Background())
	require.NoError(t, err)

	replayed := state.New()
	require.NoError(t, p.Log.Replay(replayed.Apply))
	require.Contains(t, replayed.Chains, "eICP")
	_, _, consumeSeq, _ := replayed.Snapshot()
	require.EqualValues(t, 1, consumeSeq)
	require.NoError(t, replayed.CheckInvariants())
}

func TestPullAndApplyEmptyBatchIsNoop(t *testing.T) {
	p, _ := newProcessor(t)
	n, err := p.PullAndApply(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}
