// Package feewindow is the shared rolling-window percentile fee
// estimator every chain adapter's own FeeEstimator can sit on top of
// instead of reimplementing its own ring buffer and percentile math.
// It generalizes the pattern already present in bitcoin.FeeEstimator
// (EstimateSmartFee queried at several confirmation targets, then
// bounds widened/narrowed by hand) and evm.FeeEstimator (EIP-1559
// baseFee polling) into one data structure: push observed fee-rate
// datapoints as they arrive, then ask for a percentile over the most
// recent Capacity of them.
package feewindow

import (
	"math"
	"sort"
	"sync"
)

// DefaultCapacity is the "last 100 datapoints" window size named by the
// fee estimation step this package generalizes.
const DefaultCapacity = 100

// Window holds up to Capacity recent fee-rate observations (sat/vByte,
// wei/gas, or whatever unit the caller feeds it consistently) and
// answers percentile queries over them. Zero value is not usable; use
// New. Safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	capacity int
	samples  []float64 // ring buffer
	next     int       // next write position
	filled   int       // number of valid entries, caps at capacity
	fallback float64    // DEFAULT_FEE: returned when the window has no data yet
}

// New returns an empty Window holding up to capacity datapoints
// (DefaultCapacity if capacity <= 0), returning fallback when empty.
func New(capacity int, fallback float64) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{capacity: capacity, samples: make([]float64, capacity), fallback: fallback}
}

// Push records one observed fee-rate datapoint, evicting the oldest
// sample once the window is full.
func (w *Window) Push(rate float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = rate
	w.next = (w.next + 1) % w.capacity
	if w.filled < w.capacity {
		w.filled++
	}
}

// Len reports how many datapoints are currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filled
}

// Percentile returns the p-th percentile (0 <= p <= 100) of the current
// window, or the configured fallback if the window holds no samples.
// Linear interpolation between the two bracketing order statistics,
// matching the common "median of last N, nearest-rank with
// interpolation" convention used by fee-percentile RPCs.
func (w *Window) Percentile(p float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.filled == 0 {
		return w.fallback
	}

	sorted := make([]float64, w.filled)
	copy(sorted, w.samples[:w.filled])
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Median is Percentile(50), the estimator spec.md names directly.
func (w *Window) Median() float64 {
	return w.Percentile(50)
}

// Bounds returns a (min, recommended, max) triple derived from the
// window: the 10th/50th/90th percentiles. Chain adapters that need a
// Capabilities-style MinFee/Recommended/MaxFee triple from a single
// rolling window (rather than querying several RPC targets, as Bitcoin's
// own FeeEstimator still does) can use this directly.
func (w *Window) Bounds() (min, recommended, max float64) {
	return w.Percentile(10), w.Percentile(50), w.Percentile(90)
}
