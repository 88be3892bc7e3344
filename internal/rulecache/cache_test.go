package rulecache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingStore records how many times FetchRules was actually invoked,
// so the claim protocol's "at most one fetch per TTL window" guarantee
// (spec.md §8 Testable Property #5) can be asserted directly instead of
// inferred from timing.
type countingStore struct {
	calls int64
	row   Row
}

func (s *countingStore) FetchRules(ctx context.Context) ([]Row, error) {
	atomic.AddInt64(&s.calls, 1)
	return []Row{s.row}, nil
}

func validRuleRow(id int64, name string) Row {
	return Row{
		ID:          id,
		Name:        name,
		RequiresAck: false,
		Definition: []byte(`{
			"id": 0,
			"name": "placeholder",
			"requires-ack": false,
			"severity": "info",
			"target": 1,
			"reduce-logic": "any",
			"data-source": "facts",
			"rule-type": "simple",
			"predicates": []
		}`),
	}
}

// TestReloadCoalescesConcurrentCallers spins N goroutines that all call
// Reload(ctx, false) at once against a store with a fixed clock (no TTL
// elapsed between them) and asserts the store is hit exactly once: the
// rest must observe an already-fresh lastUpdate and return without
// fetching.
func TestReloadCoalescesConcurrentCallers(t *testing.T) {
	const goroutines = 50
	store := &countingStore{row: validRuleRow(1, "high-cpu")}
	frozen := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache := New(store, nil, WithTTL(time.Hour), WithClock(func() time.Time { return frozen }))

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	var ready sync.WaitGroup
	ready.Add(goroutines)
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			<-start
			errs <- cache.Reload(context.Background(), false)
		}()
	}
	ready.Wait()
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected Reload error: %v", err)
		}
	}
	if got := atomic.LoadInt64(&store.calls); got != 1 {
		t.Fatalf("want exactly 1 FetchRules call within the TTL window, got %d", got)
	}
	if _, ok := cache.RuleByName("high-cpu"); !ok {
		t.Fatal("expected the one successful fetch to populate the cache")
	}
}

// TestReloadForcedWinsOverFreshClaim proves the !forced resolution from
// SPEC_FULL §8: a forced caller must still fetch even when the TTL hasn't
// elapsed and an unforced caller would no-op, and it must do so even when
// the fast-path and write-lock-recheck both have to evaluate the forced
// flag rather than the elapsed time.
func TestReloadForcedWinsOverFreshClaim(t *testing.T) {
	store := &countingStore{row: validRuleRow(2, "link-down")}
	frozen := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache := New(store, nil, WithTTL(time.Hour), WithClock(func() time.Time { return frozen }))

	if err := cache.Reload(context.Background(), true); err != nil {
		t.Fatalf("initial forced Reload: %v", err)
	}
	if got := atomic.LoadInt64(&store.calls); got != 1 {
		t.Fatalf("want 1 fetch after the initial forced reload, got %d", got)
	}

	// TTL hasn't elapsed (the clock is frozen), so an unforced reload must
	// be a no-op.
	if err := cache.Reload(context.Background(), false); err != nil {
		t.Fatalf("unforced Reload: %v", err)
	}
	if got := atomic.LoadInt64(&store.calls); got != 1 {
		t.Fatalf("want unforced Reload within the TTL window to skip the fetch, got %d calls", got)
	}

	// A forced reload must still fetch despite the same frozen clock.
	if err := cache.Reload(context.Background(), true); err != nil {
		t.Fatalf("second forced Reload: %v", err)
	}
	if got := atomic.LoadInt64(&store.calls); got != 2 {
		t.Fatalf("want forced Reload to fetch regardless of TTL, got %d calls", got)
	}
}

// TestReloadSkipsWithinTTL is the plain single-goroutine companion to the
// concurrent case: two unforced reloads inside the same TTL window must
// only fetch once.
func TestReloadSkipsWithinTTL(t *testing.T) {
	store := &countingStore{row: validRuleRow(3, "disk-full")}
	frozen := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	cache := New(store, nil, WithTTL(time.Hour), WithClock(func() time.Time { return frozen }))

	for i := 0; i < 3; i++ {
		if err := cache.Reload(context.Background(), false); err != nil {
			t.Fatalf("Reload #%d: %v", i, err)
		}
	}
	if got := atomic.LoadInt64(&store.calls); got != 1 {
		t.Fatalf("want 1 fetch across 3 unforced reloads in one TTL window, got %d", got)
	}
}
