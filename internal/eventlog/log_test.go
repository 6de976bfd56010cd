package eventlog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndEventsRoundTrip(t *testing.T) {
	l := openTestLog(t)

	init := Event{Kind: KindInit, Init: &InitArgs{ChainID: "Bitcoin", ChainType: domain.ChainTypeSettlement, HubURL: "https://hub.example"}}
	require.NoError(t, l.Record(init))

	utxoEvt := Event{
		Kind: KindReceivedUtxos,
		ReceivedUtxos: &ReceivedUtxosPayload{
			Destination: domain.Destination{TargetChainID: "eICP", Receiver: "abc"},
			Utxos:       []domain.Utxo{{Txid: "deadbeef", Vout: 0, Value: 5000}},
		},
	}
	require.NoError(t, l.Record(utxoEvt))

	n, err := l.Len()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := l.Events(0, MaxEventsPerQuery)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, KindInit, got[0].Kind)
	require.Equal(t, "Bitcoin", got[0].Init.ChainID)
	require.Equal(t, KindReceivedUtxos, got[1].Kind)
	require.Equal(t, "deadbeef", got[1].ReceivedUtxos.Utxos[0].Txid)
}

func TestEventsIsCappedAtMaxEventsPerQuery(t *testing.T) {
	l := openTestLog(t)
	require.NoError(t, l.Record(Event{Kind: KindInit, Init: &InitArgs{ChainID: "Bitcoin"}}))
	for i := 0; i < MaxEventsPerQuery+10; i++ {
		require.NoError(t, l.Record(Event{Kind: KindConfirmedBtcTransaction, ConfirmedTxid: "x"}))
	}

	got, err := l.Events(0, 0)
	require.NoError(t, err)
	require.Len(t, got, MaxEventsPerQuery)
}

func TestReplayRejectsEmptyLog(t *testing.T) {
	l := openTestLog(t)
	err := l.Replay(func(Event) error { return nil })
	require.Error(t, err)
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	require.Equal(t, EmptyLog, re.Kind)
}

func TestReplayRejectsNonInitFirstEvent(t *testing.T) {
	l := openTestLog(t)
	require.NoError(t, l.Record(Event{Kind: KindConfirmedBtcTransaction, ConfirmedTxid: "x"}))

	err := l.Replay(func(Event) error { return nil })
	require.Error(t, err)
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	require.Equal(t, EmptyLog, re.Kind)
}

func TestReplayVisitsEventsInOrder(t *testing.T) {
	l := openTestLog(t)
	require.NoError(t, l.Record(Event{Kind: KindInit, Init: &InitArgs{ChainID: "Bitcoin"}}))
	require.NoError(t, l.Record(Event{Kind: KindConfirmedBtcTransaction, ConfirmedTxid: "tx1"}))
	require.NoError(t, l.Record(Event{Kind: KindConfirmedBtcTransaction, ConfirmedTxid: "tx2"}))

	var seen []Kind
	err := l.Replay(func(ev Event) error {
		seen = append(seen, ev.Kind)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Kind{KindInit, KindConfirmedBtcTransaction, KindConfirmedBtcTransaction}, seen)
}

func TestReplayPropagatesInconsistentLog(t *testing.T) {
	l := openTestLog(t)
	require.NoError(t, l.Record(Event{Kind: KindInit, Init: &InitArgs{ChainID: "Bitcoin"}}))
	require.NoError(t, l.Record(Event{Kind: KindRemovedTicketRequest, RemovedRequestTxid: "missing"}))

	err := l.Replay(func(ev Event) error {
		if ev.Kind == KindRemovedTicketRequest {
			return NewInconsistentLog("no pending request for txid %s", ev.RemovedRequestTxid)
		}
		return nil
	})
	require.Error(t, err)
	var re *ReplayError
	require.ErrorAs(t, err, &re)
	require.Equal(t, InconsistentLog, re.Kind)
}
