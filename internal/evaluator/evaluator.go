// Package evaluator implements the two long-lived per-stream tasks from
// spec.md §4.2: the facts pipeline and the syslog pipeline. Both share a
// rule cache, a sustained ledger, and a topology resolver, and both emit
// AlertEvent drafts onto a shared bounded channel for the dispatcher.
// Grounded on the teacher's goroutine-plus-select task shape (main.go's
// Broker reader/writer loops) and on the original's per-tick evaluation
// pass in backend_aegis/src/model/alerts/alert_backend.rs.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetalert/engine/internal/ledger"
	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/metrics"
	"github.com/fleetalert/engine/internal/model"
	"github.com/fleetalert/engine/internal/rulecache"
)

// Topology is the subset of topology.Cache's surface the evaluator needs:
// resolving a rule's raw target-id to an EvaluableItem, then expanding it
// to concrete devices (spec.md §4.2, step 3).
type Topology interface {
	ResolveItem(id int64) (model.EvaluableItem, bool)
	ResolveDevices(ctx context.Context, item model.EvaluableItem) ([]model.Device, error)
}

// Evaluator holds the shared state the facts and syslog pipelines both
// read: the rule cache, the sustained ledger, and the topology resolver.
// The zero value is not usable; construct with New.
type Evaluator struct {
	rules  *rulecache.Cache
	ledger *ledger.Ledger
	topo   Topology
	logger *logging.Logger
	now    func() time.Time
}

// Option customises Evaluator construction.
type Option func(*Evaluator)

// WithClock overrides the evaluator's time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Evaluator over the given shared components.
func New(rules *rulecache.Cache, sustainedLedger *ledger.Ledger, topo Topology, logger *logging.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{rules: rules, ledger: sustainedLedger, topo: topo, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// RunFacts consumes fact deliveries from deliveries and emits firing events
// onto out until deliveries closes or ctx is cancelled (spec.md §4.2's
// facts pipeline).
func (e *Evaluator) RunFacts(ctx context.Context, deliveries <-chan model.Delivery, out chan<- model.Event) error {
	var previous model.Delivery
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := e.rules.Reload(ctx, false); err != nil {
				e.warnf("facts pipeline: rule reload failed: %v", err)
			}
			if err := e.evaluateDelivery(ctx, e.rules.FactsRules(), delivery, previous, false, out); err != nil {
				return err
			}
			previous = delivery
		}
	}
}

// RunSyslog consumes syslog records from records, lifts each to a
// single-device delivery, and emits firing events onto out. Syslog rules
// always evaluate in simple mode regardless of their declared kind
// (spec.md §4.2's syslog pipeline).
func (e *Evaluator) RunSyslog(ctx context.Context, records <-chan model.SyslogRecord, out chan<- model.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-records:
			if !ok {
				return nil
			}
			if err := e.rules.Reload(ctx, false); err != nil {
				e.warnf("syslog pipeline: rule reload failed: %v", err)
			}
			delivery := rec.ToDelivery()
			if err := e.evaluateDelivery(ctx, e.rules.SyslogRules(), delivery, model.Delivery{}, true, out); err != nil {
				return err
			}
		}
	}
}

// evaluateDelivery applies every rule in rules against the current (and,
// for delta kinds, previous) delivery, resolving each rule's target and
// emitting a draft event per firing device.
func (e *Evaluator) evaluateDelivery(ctx context.Context, rules []model.Rule, current, previous model.Delivery, forceSimple bool, out chan<- model.Event) error {
	source := "facts"
	if forceSimple {
		source = "syslog"
	}
	for _, rule := range rules {
		metrics.EvaluationsTotal.WithLabelValues(source).Inc()

		item, ok := e.topo.ResolveItem(rule.TargetID)
		if !ok {
			e.warnf("rule %d (%s): target %d not found in topology", rule.ID, rule.Name, rule.TargetID)
			continue
		}
		devices, err := e.topo.ResolveDevices(ctx, item)
		if err != nil {
			e.warnf("rule %d (%s): topology resolution failed: %v", rule.ID, rule.Name, err)
			continue
		}

		kind := rule.Kind.Tag
		if forceSimple {
			kind = model.KindSimple
		}

		for _, device := range devices {
			fired, witness, ok := e.evaluateForDevice(rule, kind, rule.Kind.Seconds, device.Hostname, current, previous)
			if !ok || !fired {
				continue
			}
			evt := model.Event{
				AlertTime:   e.now(),
				RequiresAck: rule.RequiresAck,
				Severity:    rule.Severity,
				Message:     fmt.Sprintf("%s: %s", rule.Name, witness),
				TargetID:    device.ID,
				RuleID:      rule.ID,
				Value:       witness,
			}
			metrics.EventsRaisedTotal.WithLabelValues(rule.Severity.String()).Inc()
			select {
			case out <- evt:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// evaluateForDevice applies rule-kind semantics (spec.md §4.2.1) for a
// single resolved device, returning whether the rule fires, the rendered
// witness, and whether evaluation was even attempted (false when a delta
// rule has no previous entry and must be skipped without counting toward
// the property in spec.md §8.1).
func (e *Evaluator) evaluateForDevice(rule model.Rule, kind model.RuleKindTag, seconds int64, hostname string, current, previous model.Delivery) (fired bool, witness string, ok bool) {
	switch kind {
	case model.KindSimple:
		if !current.HasDevice(hostname) {
			return false, "", false
		}
		fired, witness = e.evaluatePredicates(rule, current, current, hostname, false)
		return fired, witness, true

	case model.KindDelta:
		if !current.HasDevice(hostname) || !previous.HasDevice(hostname) {
			return false, "", false
		}
		fired, witness = e.evaluatePredicates(rule, current, previous, hostname, true)
		return fired, witness, true

	case model.KindSustained:
		if !current.HasDevice(hostname) {
			return false, "", false
		}
		predicateTrue, w := e.evaluatePredicates(rule, current, current, hostname, false)
		fired = e.applySustained(rule.ID, hostname, predicateTrue, seconds)
		return fired, w, true

	default:
		return false, "", false
	}
}

// applySustained implements spec.md §4.3/§4.2.1's ledger-driven debounce.
func (e *Evaluator) applySustained(ruleID int64, deviceID string, predicateTrue bool, seconds int64) bool {
	if !predicateTrue {
		e.ledger.Reset(ruleID, deviceID)
		return false
	}
	t0, ok := e.ledger.CheckFirstRaised(ruleID, deviceID)
	if !ok {
		e.ledger.SetFirstRaised(ruleID, deviceID)
		return false
	}
	if e.ledger.ShouldRaise(t0, seconds) {
		e.ledger.Reset(ruleID, deviceID)
		return true
	}
	return false
}

func (e *Evaluator) warnf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warnf(format, args...)
	}
}
