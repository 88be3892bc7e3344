package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fleetalert/engine/internal/model"
)

type stubStore struct {
	mu     sync.Mutex
	events []model.Event
	fail   int
	nextID int64
}

func (s *stubStore) InsertEvent(ctx context.Context, event model.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return 0, errors.New("insert failed")
	}
	s.nextID++
	event.AlertID = s.nextID
	s.events = append(s.events, event)
	return s.nextID, nil
}

func (s *stubStore) snapshot() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events))
	copy(out, s.events)
	return out
}

type stubBroadcaster struct {
	mu       sync.Mutex
	received []model.Event
}

func (b *stubBroadcaster) Broadcast(event model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received = append(b.received, event)
}

func (b *stubBroadcaster) snapshot() []model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Event, len(b.received))
	copy(out, b.received)
	return out
}

type stubNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *stubNotifier) NotifyFailure(ctx context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
}

func (n *stubNotifier) snapshot() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	copy(out, n.msgs)
	return out
}

func TestDispatcherPersistsThenBroadcasts(t *testing.T) {
	store := &stubStore{}
	fanout := &stubBroadcaster{}
	d := New(store, fanout, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Events() <- model.Event{RuleID: 1, TargetID: 10}
	waitForCondition(t, func() bool { return len(fanout.snapshot()) == 1 })

	got := fanout.snapshot()
	if got[0].AlertID == 0 {
		t.Fatalf("expected the broadcast event to carry the store-assigned id")
	}
	if !got[0].DBNotified {
		t.Fatalf("expected DBNotified to be set after a successful persist")
	}
}

func TestDispatcherRequeuesOnPersistFailure(t *testing.T) {
	store := &stubStore{fail: 1}
	fanout := &stubBroadcaster{}
	d := New(store, fanout, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Events() <- model.Event{RuleID: 2, TargetID: 20}
	waitForCondition(t, func() bool { return len(fanout.snapshot()) == 1 })

	if len(store.snapshot()) != 1 {
		t.Fatalf("expected the retried insert to eventually succeed, got %d rows", len(store.snapshot()))
	}
}

func TestDispatcherDropsAndNotifiesWhenShutdownRacesRequeue(t *testing.T) {
	store := &stubStore{fail: 1}
	fanout := &stubBroadcaster{}
	notifier := &stubNotifier{}
	d := New(store, fanout, notifier, nil)

	// Fill the channel directly (no Run loop draining it) so the
	// requeue send in handle() below cannot land, forcing the
	// drop-and-notify branch once ctx is already cancelled.
	for i := 0; i < Capacity; i++ {
		d.events <- model.Event{RuleID: int64(i + 100)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.handle(ctx, model.Event{RuleID: 3, TargetID: 30})

	if got := notifier.snapshot(); len(got) != 1 {
		t.Fatalf("expected exactly one drop notification, got %d", len(got))
	}
}

func waitForCondition(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within timeout")
}
