// Package broadcast implements the subscriber fan-out from spec.md §4.5: a
// registry of bounded send handles reached by try-send with a cooperative
// one-shot retry on a full channel, and pruning of handles whose channel
// has been closed. Adapted from the teacher's subscriber map in
// internal/events/stream.go, simplified to the at-most-once-per-subscriber
// semantics spec.md's Non-goals require (no replay log, no ack tracking).
package broadcast

import (
	"sync"

	"github.com/fleetalert/engine/internal/model"
)

// Handle is a subscriber's bounded send channel. Closed is consulted by
// broadcast to detect a disconnected subscriber without a failed send
// (spec.md §4.5's "channel closed: mark id for pruning").
type Handle struct {
	Events chan<- model.Event
	Closed <-chan struct{}
}

// Registry is the thread-safe subscriber map. The zero value is not usable;
// construct with New.
type Registry struct {
	mu        sync.Mutex
	nextID    uint64
	handles   map[uint64]Handle
	onPrune   func(id uint64)
	sentCount func()
	dropCount func()
}

// Option customises Registry construction.
type Option func(*Registry)

// WithPruneHook installs a callback invoked once per id removed during
// broadcast's pruning pass, for metrics/logging.
func WithPruneHook(fn func(id uint64)) Option {
	return func(r *Registry) { r.onPrune = fn }
}

// WithSendMetrics installs counters incremented on successful sends and on
// silent drops, respectively (spec.md §4.5, metrics per SPEC_FULL.md §5).
func WithSendMetrics(sent, dropped func()) Option {
	return func(r *Registry) {
		r.sentCount = sent
		r.dropCount = dropped
	}
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{handles: make(map[uint64]Handle)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Add registers handle and returns its newly allocated, monotonically
// increasing subscriber id (spec.md §4.5's add(handle) -> id).
func (r *Registry) Add(handle Handle) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.handles[id] = handle
	return id
}

// Remove unregisters id, reporting whether it was present.
func (r *Registry) Remove(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; !ok {
		return false
	}
	delete(r.handles, id)
	return true
}

// Broadcast snapshots the current id/handle pairs under a short lock,
// releases it, then attempts a non-blocking send to each handle. A closed
// channel is marked for pruning; a full channel gets one cooperative retry
// (a second non-blocking send attempt) before the message is dropped
// silently. After iteration, ids whose channel was found closed are
// removed from the registry under a single write lock (spec.md §4.5).
func (r *Registry) Broadcast(event model.Event) {
	r.mu.Lock()
	snapshot := make(map[uint64]Handle, len(r.handles))
	for id, h := range r.handles {
		snapshot[id] = h
	}
	r.mu.Unlock()

	var toPrune []uint64
	for id, h := range snapshot {
		switch r.trySend(h, event) {
		case sendOK:
			if r.sentCount != nil {
				r.sentCount()
			}
		case sendClosed:
			toPrune = append(toPrune, id)
		case sendDropped:
			if r.dropCount != nil {
				r.dropCount()
			}
		}
	}

	if len(toPrune) == 0 {
		return
	}
	r.mu.Lock()
	for _, id := range toPrune {
		delete(r.handles, id)
	}
	r.mu.Unlock()
	if r.onPrune != nil {
		for _, id := range toPrune {
			r.onPrune(id)
		}
	}
}

type sendOutcome int

const (
	sendOK sendOutcome = iota
	sendClosed
	sendDropped
)

// trySend is the non-blocking send from spec.md §4.5. A closed subscriber
// is reported for pruning. On a full channel, one further non-blocking send
// attempt stands in for the "cooperative reservation" (Go channels have no
// separate reserve phase); if that also finds the channel full the message
// is dropped rather than waited on, matching the non-awaited variant the
// spec selects for dispatcher throughput.
func (r *Registry) trySend(h Handle, event model.Event) sendOutcome {
	if h.Closed != nil {
		select {
		case <-h.Closed:
			return sendClosed
		default:
		}
	}
	select {
	case h.Events <- event:
		return sendOK
	default:
	}
	select {
	case h.Events <- event:
		return sendOK
	default:
		return sendDropped
	}
}

// Len reports the current subscriber count, for diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
