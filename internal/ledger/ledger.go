// Package ledger implements the sustained-state debounce store described in
// spec.md §4.3: a mapping from rule id to device id to the timestamp (a
// time.Time, not truncated to seconds) at which a sustained predicate
// first evaluated true. It is
// touched only by the evaluator's facts pipeline.
package ledger

import (
	"sync"
	"time"

	"github.com/fleetalert/engine/internal/metrics"
)

type key struct {
	ruleID   int64
	deviceID string
}

// Ledger tracks first-seen-true timestamps for sustained rules. The zero
// value is not usable; construct with New or NewWithClock.
type Ledger struct {
	mu      sync.Mutex
	entries map[key]time.Time
	now     func() time.Time
}

// New constructs an empty Ledger using the real wall clock.
func New() *Ledger {
	return &Ledger{entries: make(map[key]time.Time), now: time.Now}
}

// NewWithClock constructs a Ledger using now for timestamps, for
// deterministic tests.
func NewWithClock(now func() time.Time) *Ledger {
	return &Ledger{entries: make(map[key]time.Time), now: now}
}

// CheckFirstRaised reports the first-seen-true timestamp for (ruleID,
// deviceID), if a ledger entry exists.
func (l *Ledger) CheckFirstRaised(ruleID int64, deviceID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.entries[key{ruleID, deviceID}]
	return t, ok
}

// SetFirstRaised writes the current time as the first-seen-true timestamp
// for (ruleID, deviceID), overwriting any existing entry.
func (l *Ledger) SetFirstRaised(ruleID int64, deviceID string) {
	l.mu.Lock()
	l.entries[key{ruleID, deviceID}] = l.now()
	n := len(l.entries)
	l.mu.Unlock()
	metrics.SustainedPendingGauge.Set(float64(n))
}

// Reset removes the ledger entry for (ruleID, deviceID), if any.
func (l *Ledger) Reset(ruleID int64, deviceID string) {
	l.mu.Lock()
	delete(l.entries, key{ruleID, deviceID})
	n := len(l.entries)
	l.mu.Unlock()
	metrics.SustainedPendingGauge.Set(float64(n))
}

// ShouldRaise reports whether seconds have elapsed since t0, under the
// ledger's clock.
func (l *Ledger) ShouldRaise(t0 time.Time, seconds int64) bool {
	l.mu.Lock()
	now := l.now()
	l.mu.Unlock()
	return now.Sub(t0) >= time.Duration(seconds)*time.Second
}
