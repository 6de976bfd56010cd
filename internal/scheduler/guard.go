// Package scheduler provides the reentrancy guards and ticker-driven
// loop scaffolding that keep customs/route background work from
// overlapping itself: a single TimerLogicGuard per named loop (directive
// pull, ticket pull, deposit scan, confirmation sweep) and a keyed guard
// for per-resource idempotency (e.g. never processing the same deposit
// txid twice concurrently). Grounded on the bounded-concurrency pattern
// in src/chainadapter/metrics and storage (teacher), generalized from
// per-chain adapter bookkeeping to named-loop bookkeeping.
package scheduler

import "sync"

// TimerLogicGuard ensures at most one invocation of a named periodic
// task runs at a time: if the previous tick is still running when the
// next tick fires, the new tick is a silent no-op rather than stacking
// concurrent runs.
type TimerLogicGuard struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewTimerLogicGuard returns a ready-to-use guard.
func NewTimerLogicGuard() *TimerLogicGuard {
	return &TimerLogicGuard{running: make(map[string]bool)}
}

// TryEnter attempts to mark name as running. It returns false (and does
// nothing) if name is already running.
func (g *TimerLogicGuard) TryEnter(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running[name] {
		return false
	}
	g.running[name] = true
	return true
}

// Exit clears the running flag for name. Callers should defer this
// immediately after a successful TryEnter.
func (g *TimerLogicGuard) Exit(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, name)
}

// Run invokes fn only if name is not already running, returning whether
// fn was invoked. This is the usual call shape from a time.Ticker loop:
//
//	for range ticker.C {
//	    guard.Run("pull_directives", func() { processor.PullAndApply(ctx) })
//	}
func (g *TimerLogicGuard) Run(name string, fn func()) bool {
	if !g.TryEnter(name) {
		return false
	}
	defer g.Exit(name)
	fn()
	return true
}

// KeyedGuard bounds how many concurrent in-flight operations share a
// key (e.g. a deposit txid), and deduplicates re-entry on the exact same
// key. Grounded on generate_ticket_guard(txid) in
// original_source/customs/bitcoin/src/guard.rs.
type KeyedGuard struct {
	mu      sync.Mutex
	inFlight map[string]int
	maxPerKey int
}

// NewKeyedGuard returns a KeyedGuard allowing at most maxConcurrent
// simultaneous holders of any single key. maxConcurrent <= 0 means "at
// most one", matching generate_ticket_guard's per-txid exclusivity.
func NewKeyedGuard(maxConcurrent int) *KeyedGuard {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &KeyedGuard{inFlight: make(map[string]int), maxPerKey: maxConcurrent}
}

// TryEnter attempts to take a slot for key. Returns false if the key is
// already at its concurrency limit.
func (g *KeyedGuard) TryEnter(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[key] >= g.maxPerKey {
		return false
	}
	g.inFlight[key]++
	return true
}

// Exit releases a slot for key.
func (g *KeyedGuard) Exit(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight[key] > 0 {
		g.inFlight[key]--
	}
	if g.inFlight[key] == 0 {
		delete(g.inFlight, key)
	}
}

// InFlight reports how many holders key currently has, for metrics.
func (g *KeyedGuard) InFlight(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight[key]
}
