// Package rulecache implements the coalesced-refresh rule cache described in
// spec.md §4.1: two partitions (facts/syslog), a name lookup, and the
// claim protocol that serializes concurrent reload requests into at most
// one underlying store fetch per TTL window.
package rulecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/metrics"
	"github.com/fleetalert/engine/internal/model"
)

// Row is one fetched rule row: the store-authoritative id/name/requires-ack
// win over whatever the JSON body itself carries (spec.md §4.1).
type Row struct {
	ID          int64
	Name        string
	RequiresAck bool
	Definition  []byte
}

// Store is the read-side contract from spec.md §6: fetch-rules().
type Store interface {
	FetchRules(ctx context.Context) ([]Row, error)
}

// DefaultTTL matches spec.md §6's rule-set-cache-invalidation-s default.
const DefaultTTL = time.Hour

// Cache holds the two rule partitions plus the claim-protocol state. The
// zero value is not usable; construct with New.
type Cache struct {
	store  Store
	logger *logging.Logger
	ttl    time.Duration
	now    func() time.Time

	// updateMu guards lastUpdate only, so a slow store fetch never blocks
	// evaluator reads of the rule partitions (spec.md §5's shared-state
	// table lists these as two separate locks).
	updateMu   sync.RWMutex
	lastUpdate time.Time

	partitionsMu sync.RWMutex
	factsRules   []model.Rule
	syslogRules  []model.Rule
	byName       map[string]model.Rule
}

// Option customises Cache construction.
type Option func(*Cache)

// WithTTL overrides the reload TTL (default DefaultTTL).
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the cache's time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Cache backed by store. The cache starts empty and stale;
// callers are expected to force an initial reload at startup.
func New(store Store, logger *logging.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: logger,
		ttl:    DefaultTTL,
		now:    time.Now,
		byName: make(map[string]model.Rule),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// claim holds updateMu's write lock until release is called; callers defer
// release immediately after a successful claim, mirroring the Rust
// original's drop-on-scope write guard (spec.md §4.1).
type claim struct {
	cache *Cache
}

func (g *claim) release() {
	if g == nil || g.cache == nil {
		return
	}
	g.cache.updateMu.Unlock()
}

// tryClaimUpdate implements spec.md §4.1's claim protocol. The !forced
// clause is checked on both the fast-path read and the write-lock recheck,
// per the Open Question resolution in spec.md §9 / SPEC_FULL §8: a forced
// caller always wins the claim.
func (c *Cache) tryClaimUpdate(forced bool) (*claim, bool) {
	c.updateMu.RLock()
	last := c.lastUpdate
	c.updateMu.RUnlock()

	if !forced && c.now().Sub(last) < c.ttl {
		return nil, false
	}

	c.updateMu.Lock()
	if !forced && c.now().Sub(c.lastUpdate) < c.ttl {
		c.updateMu.Unlock()
		return nil, false
	}
	c.lastUpdate = c.now()
	return &claim{cache: c}, true
}

// Reload implements spec.md §4.1's reload contract. It is a no-op (returns
// nil without touching the store) unless the TTL elapsed or forced is true.
// A store fetch error aborts the reload and keeps the previous partitions,
// per spec.md §6's failure table.
func (c *Cache) Reload(ctx context.Context, forced bool) error {
	guard, ok := c.tryClaimUpdate(forced)
	if !ok {
		return nil
	}
	defer guard.release()

	rows, err := c.store.FetchRules(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Error(err, "rule store fetch failed; keeping previous rule cache")
		}
		return fmt.Errorf("rulecache: fetch rules: %w", err)
	}

	facts := make([]model.Rule, 0, len(rows))
	syslog := make([]model.Rule, 0, len(rows))
	names := make(map[string]model.Rule, len(rows))

	for _, row := range rows {
		var rule model.Rule
		if err := json.Unmarshal(row.Definition, &rule); err != nil {
			metrics.RuleParseFailuresTotal.Inc()
			if c.logger != nil {
				c.logger.Warnf("skipping rule %d (%s): parse failure: %v", row.ID, row.Name, err)
			}
			continue
		}
		// 1.- Store-authoritative fields win over whatever the JSON body
		// itself carried (spec.md §4.1).
		rule.ID = row.ID
		rule.Name = row.Name
		rule.RequiresAck = row.RequiresAck
		if rule.ReduceLogic == model.ReduceUnknown && c.logger != nil {
			c.logger.Warnf("rule %d (%s): unknown reduce logic; the rule never fires", row.ID, row.Name)
		}

		switch rule.DataSource {
		case model.DataSourceFacts:
			facts = append(facts, rule)
		case model.DataSourceSyslog:
			syslog = append(syslog, rule)
		}
		names[rule.Name] = rule
	}

	c.partitionsMu.Lock()
	c.factsRules = facts
	c.syslogRules = syslog
	c.byName = names
	c.partitionsMu.Unlock()
	metrics.RulesReloadedTotal.Inc()
	return nil
}

// FactsRules returns a read-only snapshot of the current facts partition.
func (c *Cache) FactsRules() []model.Rule {
	c.partitionsMu.RLock()
	defer c.partitionsMu.RUnlock()
	return c.factsRules
}

// SyslogRules returns a read-only snapshot of the current syslog partition.
func (c *Cache) SyslogRules() []model.Rule {
	c.partitionsMu.RLock()
	defer c.partitionsMu.RUnlock()
	return c.syslogRules
}

// RuleByName resolves a rule by its name from the combined lookup.
func (c *Cache) RuleByName(name string) (model.Rule, bool) {
	c.partitionsMu.RLock()
	defer c.partitionsMu.RUnlock()
	rule, ok := c.byName[name]
	return rule, ok
}

// LastUpdate reports the time of the most recent successful claim, for
// readiness/diagnostics endpoints.
func (c *Cache) LastUpdate() time.Time {
	c.updateMu.RLock()
	defer c.updateMu.RUnlock()
	return c.lastUpdate
}
