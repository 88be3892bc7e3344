// Package dispatch implements the single-consumer event dispatcher from
// spec.md §4.4: one task drains a bounded channel fed by both evaluator
// pipelines, persists each event durably, then hands it to the broadcast
// fan-out. Grounded on the teacher's single-owner broadcast loop in
// main.go's Broker (one goroutine reads a channel and owns every send),
// adapted from its websocket-frame domain to durable-write-then-broadcast.
package dispatch

import (
	"context"
	"fmt"

	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/metrics"
	"github.com/fleetalert/engine/internal/model"
)

// Store is the durable persistence contract the dispatcher writes through.
// InsertEvent must assign and return the event's allocated id.
type Store interface {
	InsertEvent(ctx context.Context, event model.Event) (int64, error)
}

// Broadcaster is the fan-out contract a persisted event is handed to.
type Broadcaster interface {
	Broadcast(event model.Event)
}

// Notifier is the side-channel the dispatcher reports a dropped event to
// after a requeue failure (spec.md §4.4's "forward the failure text to a
// side-channel notifier"). Implemented by internal/notifier.
type Notifier interface {
	NotifyFailure(ctx context.Context, text string)
}

// Dispatcher owns the bounded event channel and is its only receiver.
// Producers send onto it through Events(); the dispatcher itself also sends
// on it to requeue an event whose persist failed (spec.md §4.4's "requeue
// to the same channel via the send handle the dispatcher also holds").
type Dispatcher struct {
	store    Store
	fanout   Broadcaster
	notifier Notifier
	logger   *logging.Logger
	events   chan model.Event
}

// Capacity is the bounded channel size spec.md §4.4 fixes at 64: producers
// block once the backlog saturates, which is the intended backpressure.
const Capacity = 64

// New constructs a Dispatcher with its internal bounded channel. notifier
// may be nil; a nil notifier means dropped events are only logged.
func New(store Store, fanout Broadcaster, notifier Notifier, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		fanout:   fanout,
		notifier: notifier,
		logger:   logger,
		events:   make(chan model.Event, Capacity),
	}
}

// Events returns the send handle both evaluator pipelines enqueue drafts
// onto. The channel is never closed by the dispatcher; callers stop
// producing and let Run return via ctx cancellation instead.
func (d *Dispatcher) Events() chan<- model.Event {
	return d.events
}

// Run drains the event channel until ctx is cancelled, persisting and
// broadcasting each event per spec.md §4.4's per-event procedure.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-d.events:
			d.handle(ctx, evt)
		}
	}
}

// handle implements the per-event procedure: persist, then either
// broadcast on success or requeue (and, on requeue failure, drop and
// notify) on failure.
func (d *Dispatcher) handle(ctx context.Context, evt model.Event) {
	id, err := d.store.InsertEvent(ctx, evt)
	if err != nil {
		d.warnf("dispatch: persist failed for rule %d target %d: %v", evt.RuleID, evt.TargetID, err)
		d.requeue(ctx, evt, err)
		return
	}

	evt.AlertID = id
	evt.DBNotified = true
	metrics.EventsPersistedTotal.Inc()
	d.fanout.Broadcast(evt)
}

// requeue resends evt to the dispatcher's own channel. A full channel
// blocks here by design (spec.md §4.4's bounded backlog is the intended
// backpressure). Shutdown (ctx cancelled before the resend lands) is the
// one way requeue can fail in practice, since the dispatcher is the
// channel's only owner and never closes it itself; that case is treated as
// the "requeue failed" branch spec.md §4.4 describes.
func (d *Dispatcher) requeue(ctx context.Context, evt model.Event, cause error) {
	select {
	case d.events <- evt:
		metrics.EventsRequeuedTotal.Inc()
	case <-ctx.Done():
		d.drop(ctx, evt, fmt.Errorf("requeue after persist failure (%v): dispatcher shutting down", cause))
	}
}

// drop logs at error level, forwards the failure text to the side-channel
// notifier if one is configured, and counts the loss.
func (d *Dispatcher) drop(ctx context.Context, evt model.Event, err error) {
	metrics.EventsDroppedTotal.Inc()
	if d.logger != nil {
		d.logger.Error(err, "dispatch: event dropped", logging.Int64("rule_id", evt.RuleID), logging.Int64("target_id", evt.TargetID))
	}
	if d.notifier != nil {
		d.notifier.NotifyFailure(ctx, fmt.Sprintf("alert event dropped for rule %d target %d: %v", evt.RuleID, evt.TargetID, err))
	}
}

func (d *Dispatcher) warnf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Warnf(format, args...)
	}
}
