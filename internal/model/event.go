package model

import "time"

// Event is the AlertEvent aggregate from spec.md §3. AlertID is zero until
// the dispatcher's durable write assigns one (spec.md's "Invariants": "a
// persisted event has a positive alert-id and db-notified = true").
type Event struct {
	AlertID     int64
	AlertTime   time.Time
	AckTime     time.Time
	RequiresAck bool
	Severity    Severity
	Message     string
	TargetID    int64
	RuleID      int64
	Value       string
	Acked       bool
	WSNotified  bool
	DBNotified  bool
	AckActor    string
}

// Ack records an acknowledgement. This is never called by the core itself
// (the core only ever raises events with Acked=false); it exists for the
// out-of-core REST layer described in spec.md §1 as an external
// collaborator, per SPEC_FULL §7.
func (e *Event) Ack(actor string, at time.Time) {
	if e == nil {
		return
	}
	e.Acked = true
	e.AckActor = actor
	e.AckTime = at
}
