package eventlog

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// MaxEventsPerQuery bounds how many events a single Events call will
// return, matching the hub's own MAX_EVENTS_PER_QUERY
// (original_source/hub/src/event.rs) so that customs/route pull loops
// never request an unbounded page.
const MaxEventsPerQuery = 2000

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CanonicalEncOptions()
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("eventlog: building canonical cbor encoder: %v", err))
	}
	encMode = m

	dopts := cbor.DecOptions{}
	dm, err := dopts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("eventlog: building cbor decoder: %v", err))
	}
	decMode = dm
}

// ReplayErrorKind distinguishes why replaying a log failed.
type ReplayErrorKind int

const (
	// EmptyLog: the log has no Init event at position 0.
	EmptyLog ReplayErrorKind = iota
	// InconsistentLog: an event referenced state that does not exist,
	// e.g. FinalizedTicketRequest for a txid with no pending request.
	InconsistentLog
)

func (k ReplayErrorKind) String() string {
	switch k {
	case EmptyLog:
		return "EmptyLog"
	case InconsistentLog:
		return "InconsistentLog"
	default:
		return "Unknown"
	}
}

// ReplayError is returned by Log.Replay (via the caller's Apply) when the
// event stream cannot be folded into a consistent state.
type ReplayError struct {
	Kind   ReplayErrorKind
	Detail string
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("eventlog: %s: %s", e.Kind, e.Detail)
}

// NewInconsistentLog builds the InconsistentLog variant of ReplayError;
// exported so internal/state can raise it from inside Apply without
// depending on eventlog internals.
func NewInconsistentLog(format string, args ...any) error {
	return &ReplayError{Kind: InconsistentLog, Detail: fmt.Sprintf(format, args...)}
}

// Log is an append-only, durably-stored sequence of Events. It is the
// sole write path for state mutation: callers must Record an event
// before applying its effect in memory (spec.md §9).
type Log struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a goleveldb-backed event log rooted at
// dir. The database stores one key per event, big-endian uint64 index ->
// canonical-CBOR-encoded Event, so range scans stay in insertion order.
func Open(dir string) (*Log, error) {
	ldb, err := leveldb.OpenFile(dir, &opt.Options{
		ErrorIfMissing: false,
	})
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening %s: %w", dir, err)
	}
	return &Log{db: ldb}, nil
}

func (l *Log) Close() error { return l.db.Close() }

func indexKey(i uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return b[:]
}

// Len returns the number of events recorded so far.
func (l *Log) Len() (uint64, error) {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return binary.BigEndian.Uint64(iter.Key()) + 1, iter.Error()
}

// Record appends ev as the next event and fsyncs it to disk before
// returning, so that a crash immediately afterward still has the event
// durable even if the in-memory mutation it represents was lost.
func (l *Log) Record(ev Event) error {
	n, err := l.Len()
	if err != nil {
		return fmt.Errorf("eventlog: record: %w", err)
	}
	buf, err := encMode.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: encoding event %s: %w", ev.Kind, err)
	}
	wo := &opt.WriteOptions{Sync: true}
	if err := l.db.Put(indexKey(n), buf, wo); err != nil {
		return fmt.Errorf("eventlog: writing event %d: %w", n, err)
	}
	return nil
}

// Events returns up to length events starting at start, capped at
// MaxEventsPerQuery, mirroring the hub query contract so that a page
// request can never stall a pull loop on an unbounded read.
func (l *Log) Events(start uint64, length int) ([]Event, error) {
	if length <= 0 || length > MaxEventsPerQuery {
		length = MaxEventsPerQuery
	}
	rng := &util.Range{Start: indexKey(start)}
	iter := l.db.NewIterator(rng, nil)
	defer iter.Release()

	out := make([]Event, 0, length)
	for len(out) < length && iter.Next() {
		var ev Event
		if err := decMode.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("eventlog: decoding event at %d: %w", binary.BigEndian.Uint64(iter.Key()), err)
		}
		out = append(out, ev)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// Replay streams every event from the start of the log, in order,
// invoking apply for each one. apply is expected to be
// internal/state.(*State).Apply; Replay stops at the first error, which
// for a well-formed log should never be anything but a *ReplayError it
// itself produced via NewInconsistentLog.
func (l *Log) Replay(apply func(Event) error) error {
	n, err := l.Len()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ReplayError{Kind: EmptyLog, Detail: "log contains no events"}
	}

	var start uint64
	for start < n {
		batch, err := l.Events(start, MaxEventsPerQuery)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for i, ev := range batch {
			if start == 0 && i == 0 && ev.Kind != KindInit {
				return &ReplayError{Kind: EmptyLog, Detail: "first event is not Init"}
			}
			if err := apply(ev); err != nil {
				return err
			}
		}
		start += uint64(len(batch))
	}
	return nil
}
