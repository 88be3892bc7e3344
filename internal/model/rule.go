package model

import (
	"encoding/json"
	"fmt"
)

// Severity is the alert severity enum carried on AlertRule/AlertEvent,
// supplemented from the Rust original's alert_severity.rs per SPEC_FULL §7.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// ParseSeverity resolves the wire name of a Severity, defaulting to info.
func ParseSeverity(name string) Severity {
	switch name {
	case "warning":
		return SeverityWarning
	case "critical":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

func (s Severity) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = ParseSeverity(name)
	return nil
}

// DataSource is the stream a rule is evaluated against (spec.md §3).
type DataSource int

const (
	DataSourceFacts DataSource = iota
	DataSourceSyslog
)

func (d DataSource) String() string {
	if d == DataSourceSyslog {
		return "syslog"
	}
	return "facts"
}

func (d DataSource) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *DataSource) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "syslog":
		*d = DataSourceSyslog
	case "facts":
		*d = DataSourceFacts
	default:
		return fmt.Errorf("model: unknown data source %q", name)
	}
	return nil
}

// RuleKindTag discriminates the three AlertRuleKind variants (spec.md §3).
type RuleKindTag int

const (
	KindSimple RuleKindTag = iota
	KindDelta
	KindSustained
)

// RuleKind carries the tag plus the sustained-only Seconds parameter.
type RuleKind struct {
	Tag     RuleKindTag
	Seconds int64 // meaningful only when Tag == KindSustained
}

func (k RuleKind) MarshalJSON() ([]byte, error) {
	switch k.Tag {
	case KindSimple:
		return json.Marshal("simple")
	case KindDelta:
		return json.Marshal("delta")
	case KindSustained:
		return json.Marshal(map[string]map[string]int64{"sustained": {"seconds": k.Seconds}})
	default:
		return nil, fmt.Errorf("model: marshal rule kind: unknown tag %v", k.Tag)
	}
}

func (k *RuleKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		switch name {
		case "simple":
			*k = RuleKind{Tag: KindSimple}
			return nil
		case "delta":
			*k = RuleKind{Tag: KindDelta}
			return nil
		default:
			return fmt.Errorf("model: unknown rule kind %q", name)
		}
	}

	var tagged struct {
		Sustained *struct {
			Seconds int64 `json:"seconds"`
		} `json:"sustained"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("model: decode rule kind: %w", err)
	}
	if tagged.Sustained == nil {
		return fmt.Errorf("model: rule kind object must carry \"sustained\"")
	}
	*k = RuleKind{Tag: KindSustained, Seconds: tagged.Sustained.Seconds}
	return nil
}

// Rule is the AlertRule aggregate from spec.md §3.
type Rule struct {
	ID            int64
	Name          string
	RequiresAck   bool
	Severity      Severity
	TargetID      int64
	ReduceLogic   ReduceLogic
	Predicates    []Predicate
	DataSource    DataSource
	Kind          RuleKind
}

type ruleJSON struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	RequiresAck bool        `json:"requires-ack"`
	Severity    Severity    `json:"severity"`
	Target      int64       `json:"target"`
	ReduceLogic string      `json:"reduce-logic"`
	DataSource  DataSource  `json:"data-source"`
	RuleType    RuleKind    `json:"rule-type"`
	Predicates  []Predicate `json:"predicates"`
}

// MarshalJSON renders the rule JSON shape from spec.md §6.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{
		ID:          r.ID,
		Name:        r.Name,
		RequiresAck: r.RequiresAck,
		Severity:    r.Severity,
		Target:      r.TargetID,
		ReduceLogic: r.ReduceLogic.String(),
		DataSource:  r.DataSource,
		RuleType:    r.Kind,
		Predicates:  r.Predicates,
	})
}

// UnmarshalJSON decodes the rule JSON shape. It does not apply the
// store-authoritative override of id/name/requires-ack described in
// spec.md §4.1 — that happens one layer up in the rule cache's reload,
// where the store row and the JSON body are both available.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw ruleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode rule: %w", err)
	}
	reduce := ParseReduceLogic(raw.ReduceLogic)
	*r = Rule{
		ID:          raw.ID,
		Name:        raw.Name,
		RequiresAck: raw.RequiresAck,
		Severity:    raw.Severity,
		TargetID:    raw.Target,
		ReduceLogic: reduce,
		Predicates:  raw.Predicates,
		DataSource:  raw.DataSource,
		Kind:        raw.RuleType,
	}
	return nil
}
