package broadcast

import (
	"testing"

	"github.com/fleetalert/engine/internal/model"
)

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	r := New()
	chA := make(chan model.Event, 1)
	chB := make(chan model.Event, 1)
	r.Add(Handle{Events: chA})
	r.Add(Handle{Events: chB})

	r.Broadcast(model.Event{Message: "link down"})

	if got := <-chA; got.Message != "link down" {
		t.Fatalf("subscriber A: unexpected event %+v", got)
	}
	if got := <-chB; got.Message != "link down" {
		t.Fatalf("subscriber B: unexpected event %+v", got)
	}
}

func TestBroadcastPrunesClosedSubscriber(t *testing.T) {
	//1.- S6 from spec.md §8.
	r := New()
	chA := make(chan model.Event, 1)
	chB := make(chan model.Event, 1)
	chC := make(chan model.Event, 1)
	closedC := make(chan struct{})
	close(closedC)

	r.Add(Handle{Events: chA})
	r.Add(Handle{Events: chB})
	idC := r.Add(Handle{Events: chC, Closed: closedC})

	r.Broadcast(model.Event{Message: "evt"})

	if r.Len() != 2 {
		t.Fatalf("expected C pruned, registry size = %d", r.Len())
	}
	if r.Remove(idC) {
		t.Fatalf("expected C already removed by prune")
	}
}

func TestBroadcastDropsOnFullChannel(t *testing.T) {
	r := New()
	var dropped int
	full := make(chan model.Event, 1)
	full <- model.Event{Message: "occupying slot"}
	r2 := New(WithSendMetrics(func() {}, func() { dropped++ }))
	_ = r
	r2.Add(Handle{Events: full})

	r2.Broadcast(model.Event{Message: "new"})

	if dropped != 1 {
		t.Fatalf("expected one drop recorded, got %d", dropped)
	}
}

func TestAddReturnsMonotonicIDs(t *testing.T) {
	r := New()
	id1 := r.Add(Handle{Events: make(chan model.Event, 1)})
	id2 := r.Add(Handle{Events: make(chan model.Event, 1)})
	if id2 <= id1 {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", id1, id2)
	}
}

func TestRemoveUnknownIDIsFalse(t *testing.T) {
	r := New()
	if r.Remove(999) {
		t.Fatalf("expected removing an unknown id to report false")
	}
}
