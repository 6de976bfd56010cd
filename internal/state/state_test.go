package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/eventlog"
)

func initEvent() eventlog.Event {
	return eventlog.Event{Kind: eventlog.KindInit, Init: &eventlog.InitArgs{
		ChainID: "Bitcoin", ChainType: domain.ChainTypeSettlement, HubURL: "https://hub.example",
	}}
}

func TestApplyRejectsNonInitFirstEvent(t *testing.T) {
	s := New()
	err := s.Apply(eventlog.Event{Kind: eventlog.KindConfirmedBtcTransaction, ConfirmedTxid: "x"})
	require.Error(t, err)
}

func TestApplyInitThenAddedChain(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))
	require.Equal(t, "Bitcoin", s.ChainID)

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindAddedChain, Chain: &domain.Chain{
		ChainID: "eICP", ChainType: domain.ChainTypeExecution, ChainState: domain.ChainActive,
	}}))
	require.Contains(t, s.Chains, "eICP")
}

func TestUpdateNextSeqMustStrictlyIncrease(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: 5}))
	require.EqualValues(t, 5, s.NextTicketSeq)

	err := s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: 5})
	require.Error(t, err)
	err = s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: 3})
	require.Error(t, err)

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: 9}))
	require.EqualValues(t, 9, s.NextTicketSeq)
}

func TestConsumeSeqCannotExceedSeq(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: 5}))

	err := s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextConsumeTicket, NextSeq: 6})
	require.Error(t, err)

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindUpdateNextConsumeTicket, NextSeq: 4}))
	require.NoError(t, s.CheckInvariants())
}

func TestRemovedTicketRequestForgetsUtxosAndRequiresExistingRequest(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))

	err := s.Apply(eventlog.Event{Kind: eventlog.KindRemovedTicketRequest, RemovedRequestTxid: "nope"})
	require.Error(t, err)

	req := domain.GenTicketRequest{
		Txid:          "tx1",
		TargetChainID: "eICP",
		Receiver:      "abc",
		TokenID:       "BTC",
		Amount:        "5000",
		NewUtxos:      []domain.Utxo{{Txid: "tx1", Vout: 0, Value: 5000}},
		Status:        domain.GenTicketPending,
	}
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindAcceptedGenTicketRequestV2, GenTicketRequest: &req}))
	require.NoError(t, s.Apply(eventlog.Event{
		Kind: eventlog.KindReceivedUtxos,
		ReceivedUtxos: &eventlog.ReceivedUtxosPayload{
			Destination: domain.Destination{TargetChainID: "eICP", Receiver: "abc"},
			Utxos:       req.NewUtxos,
		},
	}))

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindRemovedTicketRequest, RemovedRequestTxid: "tx1"}))
	require.NotContains(t, s.PendingGenTicketRequests, "tx1")
	rec := s.Utxos[domain.OutPoint{Txid: "tx1", Vout: 0}]
	require.Equal(t, UtxoForgotten, rec.Status)
}

func TestFinalizedTicketRequestRequiresExistingRequest(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))

	err := s.Apply(eventlog.Event{Kind: eventlog.KindFinalizedTicketRequest, FinalizedRequest: &eventlog.FinalizedTicketRequestPayload{Txid: "nope"}})
	require.Error(t, err)

	req := domain.GenTicketRequest{Txid: "tx1", Status: domain.GenTicketPending}
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindAcceptedGenTicketRequestV2, GenTicketRequest: &req}))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindFinalizedTicketRequest, FinalizedRequest: &eventlog.FinalizedTicketRequestPayload{
		Txid:     "tx1",
		Balances: []domain.RunesBalance{{RuneID: "RUNE:1", Amount: "100"}},
	}}))
	require.NotContains(t, s.PendingGenTicketRequests, "tx1")
	require.Equal(t, "100", s.RunesBalances["RUNE:1"])
	require.NoError(t, s.CheckInvariants())
}

func TestSentBtcTransactionRequiresPendingReleaseAndConsumesUtxos(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))

	dest := domain.Destination{TargetChainID: "eICP", Receiver: "abc"}
	require.NoError(t, s.Apply(eventlog.Event{
		Kind: eventlog.KindReceivedUtxos,
		ReceivedUtxos: &eventlog.ReceivedUtxosPayload{
			Destination: dest,
			Utxos:       []domain.Utxo{{Txid: "in1", Vout: 0, Value: 10000}},
			IsRunes:     false,
		},
	}))

	badSend := eventlog.Event{Kind: eventlog.KindSentBtcTransaction, SentTx: &eventlog.SentBtcTransactionPayload{
		TokenID: "BTC", TicketIDs: []string{"t1"}, Txid: "out1",
		ConsumedUtxos: []domain.Utxo{{Txid: "in1", Vout: 0, Value: 10000}},
	}}
	require.Error(t, s.Apply(badSend))

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindPendingTicket, Ticket: &domain.Ticket{TicketID: "t1"}}))
	require.NoError(t, s.Apply(badSend))

	rec := s.Utxos[domain.OutPoint{Txid: "in1", Vout: 0}]
	require.Equal(t, UtxoConsumed, rec.Status)
	require.NotContains(t, s.PendingReleaseTicketIDs, "t1")
	require.Contains(t, s.SubmittedTransactions, "out1")
	require.NoError(t, s.CheckInvariants())
}

func TestReplacedBtcTransactionRequiresKnownOldTxid(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))

	err := s.Apply(eventlog.Event{Kind: eventlog.KindReplacedBtcTransaction, ReplacedTx: &eventlog.ReplacedBtcTransactionPayload{
		OldTxid: "nope", NewTxid: "new1",
	}})
	require.Error(t, err)

	require.NoError(t, s.Apply(eventlog.Event{
		Kind: eventlog.KindReceivedUtxos,
		ReceivedUtxos: &eventlog.ReceivedUtxosPayload{
			Destination: domain.Destination{TargetChainID: "eICP", Receiver: "abc"},
			Utxos:       []domain.Utxo{{Txid: "in1", Vout: 0, Value: 10000}},
		},
	}))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindPendingTicket, Ticket: &domain.Ticket{TicketID: "t1"}}))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindSentBtcTransaction, SentTx: &eventlog.SentBtcTransactionPayload{
		TokenID: "BTC", TicketIDs: []string{"t1"}, Txid: "old1",
		ConsumedUtxos: []domain.Utxo{{Txid: "in1", Vout: 0, Value: 10000}},
		ChangeOutputs: []domain.ChangeOutput{{Value: 500, Vout: 1}},
	}}))

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindReplacedBtcTransaction, ReplacedTx: &eventlog.ReplacedBtcTransactionPayload{
		OldTxid: "old1", NewTxid: "new1", ChangeOutputs: []domain.ChangeOutput{{Value: 300, Vout: 1}}, FeePerVbyte: 20,
	}}))
	require.NotContains(t, s.SubmittedTransactions, "old1")
	require.Contains(t, s.SubmittedTransactions, "new1")
	oldChange := s.Utxos[domain.OutPoint{Txid: "old1", Vout: 1}]
	require.Equal(t, UtxoForgotten, oldChange.Status)
	newChange := s.Utxos[domain.OutPoint{Txid: "new1", Vout: 1}]
	require.Equal(t, UtxoAvailable, newChange.Status)
	require.NoError(t, s.CheckInvariants())
}

func TestConfirmedBtcTransactionMovesToConfirmedSet(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))
	require.NoError(t, s.Apply(eventlog.Event{
		Kind: eventlog.KindReceivedUtxos,
		ReceivedUtxos: &eventlog.ReceivedUtxosPayload{
			Destination: domain.Destination{TargetChainID: "eICP", Receiver: "abc"},
			Utxos:       []domain.Utxo{{Txid: "in1", Vout: 0, Value: 10000}},
		},
	}))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindPendingTicket, Ticket: &domain.Ticket{TicketID: "t1"}}))
	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindSentBtcTransaction, SentTx: &eventlog.SentBtcTransactionPayload{
		TokenID: "BTC", TicketIDs: []string{"t1"}, Txid: "out1",
		ConsumedUtxos: []domain.Utxo{{Txid: "in1", Vout: 0, Value: 10000}},
	}}))

	err := s.Apply(eventlog.Event{Kind: eventlog.KindConfirmedBtcTransaction, ConfirmedTxid: "nope"})
	require.Error(t, err)

	require.NoError(t, s.Apply(eventlog.Event{Kind: eventlog.KindConfirmedBtcTransaction, ConfirmedTxid: "out1"}))
	require.NotContains(t, s.SubmittedTransactions, "out1")
	require.Contains(t, s.ConfirmedTransactions, "out1")
}

func TestAvailableUtxosPartitionedByPurpose(t *testing.T) {
	s := New()
	require.NoError(t, s.Apply(initEvent()))

	dest := domain.Destination{TargetChainID: "eICP", Receiver: "abc"}
	require.NoError(t, s.Apply(eventlog.Event{
		Kind: eventlog.KindReceivedUtxos,
		ReceivedUtxos: &eventlog.ReceivedUtxosPayload{Destination: dest, Utxos: []domain.Utxo{{Txid: "r1", Vout: 0, Value: 1000}}, IsRunes: true},
	}))
	require.NoError(t, s.Apply(eventlog.Event{
		Kind: eventlog.KindReceivedUtxos,
		ReceivedUtxos: &eventlog.ReceivedUtxosPayload{Destination: dest, Utxos: []domain.Utxo{{Txid: "f1", Vout: 0, Value: 2000}}, IsRunes: false},
	}))

	require.Len(t, s.AvailableUtxos(domain.PurposeRunes), 1)
	require.Len(t, s.AvailableUtxos(domain.PurposeAvailableFee), 1)
	require.Len(t, s.AvailableUtxos(domain.PurposeChange), 0)
}

func TestReplayFoldsEventSequence(t *testing.T) {
	l, err := eventlog.Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Record(initEvent()))
	require.NoError(t, l.Record(eventlog.Event{Kind: eventlog.KindAddedChain, Chain: &domain.Chain{ChainID: "eICP", ChainType: domain.ChainTypeExecution}}))
	require.NoError(t, l.Record(eventlog.Event{Kind: eventlog.KindUpdateNextTicketSeq, NextSeq: 1}))

	s := New()
	require.NoError(t, l.Replay(s.Apply))
	require.Equal(t, "Bitcoin", s.ChainID)
	require.Contains(t, s.Chains, "eICP")
	require.EqualValues(t, 1, s.NextTicketSeq)
	require.NoError(t, s.CheckInvariants())
}
