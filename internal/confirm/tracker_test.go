package confirm

import (
	"context"
	"testing"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
)

type fakeUTXOSource struct {
	confirmations int
	found         bool
	err           error
}

func (f *fakeUTXOSource) GetRawTransactionConfirmations(ctx context.Context, txid string) (int, bool, error) {
	return f.confirmations, f.found, f.err
}

func testConfig() Config {
	return Config{MinConfirmations: 2, FinalizationTimeEstimate: time.Millisecond, MinimumResponseCount: 2, TotalRequiredCount: 3}
}

func TestUTXOTrackerFinalizesAtMinConfirmations(t *testing.T) {
	store := storage.NewMemoryTxStore()
	store.Set("tx1", &storage.TxState{TxHash: "tx1", FirstSeen: time.Now(), Status: storage.TxStatusPending})

	tr := NewUTXOTracker(testConfig(), &fakeUTXOSource{confirmations: 3, found: true}, store)
	outcome, err := tr.Poll(context.Background(), "tx1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if outcome != OutcomeFinalized {
		t.Fatalf("Poll() = %v, want %v", outcome, OutcomeFinalized)
	}
}

func TestUTXOTrackerFlagsReplacementWhenStuck(t *testing.T) {
	store := storage.NewMemoryTxStore()
	store.Set("tx1", &storage.TxState{TxHash: "tx1", FirstSeen: time.Now().Add(-time.Hour), Status: storage.TxStatusPending})

	tr := NewUTXOTracker(testConfig(), &fakeUTXOSource{found: false}, store)
	outcome, err := tr.Poll(context.Background(), "tx1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if outcome != OutcomeNeedsReplacement {
		t.Fatalf("Poll() = %v, want %v", outcome, OutcomeNeedsReplacement)
	}
}

func TestUTXOTrackerPendingWhenRecentAndUnconfirmed(t *testing.T) {
	store := storage.NewMemoryTxStore()
	store.Set("tx1", &storage.TxState{TxHash: "tx1", FirstSeen: time.Now(), Status: storage.TxStatusPending})

	tr := NewUTXOTracker(testConfig(), &fakeUTXOSource{confirmations: 0, found: true}, store)
	outcome, err := tr.Poll(context.Background(), "tx1")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if outcome != OutcomePending {
		t.Fatalf("Poll() = %v, want %v", outcome, OutcomePending)
	}
}

type fakeReceiptSource struct {
	mined, success bool
	err            error
}

func (f *fakeReceiptSource) GetTransactionReceiptStatus(ctx context.Context, txHash string) (bool, bool, error) {
	return f.mined, f.success, f.err
}

func TestEVMTrackerRequiresQuorum(t *testing.T) {
	store := storage.NewMemoryTxStore()
	store.Set("0xabc", &storage.TxState{TxHash: "0xabc", FirstSeen: time.Now(), Status: storage.TxStatusPending})

	providers := []ReceiptSource{
		&fakeReceiptSource{mined: true, success: true},
		&fakeReceiptSource{mined: false},
		&fakeReceiptSource{mined: true, success: true},
	}
	tr := NewEVMTracker(testConfig(), providers, store)
	outcome, err := tr.Poll(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if outcome != OutcomeFinalized {
		t.Fatalf("Poll() = %v, want %v (2 of 3 providers agree, quorum is 2)", outcome, OutcomeFinalized)
	}
}

func TestEVMTrackerWithholdsVerdictBelowQuorum(t *testing.T) {
	store := storage.NewMemoryTxStore()
	store.Set("0xabc", &storage.TxState{TxHash: "0xabc", FirstSeen: time.Now(), Status: storage.TxStatusPending})

	providers := []ReceiptSource{
		&fakeReceiptSource{mined: true, success: true},
		&fakeReceiptSource{mined: false},
		&fakeReceiptSource{mined: false},
	}
	tr := NewEVMTracker(testConfig(), providers, store)
	outcome, err := tr.Poll(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if outcome != OutcomePending {
		t.Fatalf("Poll() = %v, want %v (only 1 of 3 agree, below quorum of 2)", outcome, OutcomePending)
	}
}
