package model

import (
	"encoding/json"
	"testing"
)

func TestRuleJSONSustainedKind(t *testing.T) {
	raw := `{
		"id": 1,
		"name": "link down",
		"requires-ack": true,
		"severity": "critical",
		"target": 10,
		"reduce-logic": "all",
		"data-source": "facts",
		"rule-type": {"sustained": {"seconds": 120}},
		"predicates": [
			{"left": "&icmp_status", "op": "equal", "right": "Unreachable"}
		]
	}`
	var rule Rule
	if err := json.Unmarshal([]byte(raw), &rule); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rule.Kind.Tag != KindSustained || rule.Kind.Seconds != 120 {
		t.Fatalf("expected sustained(120), got %+v", rule.Kind)
	}
	if rule.Severity != SeverityCritical {
		t.Fatalf("expected critical severity, got %v", rule.Severity)
	}
	if len(rule.Predicates) != 1 {
		t.Fatalf("expected 1 predicate, got %d", len(rule.Predicates))
	}
}

func TestRuleJSONSimpleKindRoundTrip(t *testing.T) {
	rule := Rule{
		ID:          7,
		Name:        "high rtt",
		RequiresAck: false,
		Severity:    SeverityWarning,
		TargetID:    42,
		ReduceLogic: ReduceAny,
		DataSource:  DataSourceFacts,
		Kind:        RuleKind{Tag: KindSimple},
		Predicates: []Predicate{
			NewRightConstPredicate(Identity(), "icmp_rtt", OpMoreThan, Number(75), Identity()),
		},
	}
	data, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Rule
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Name != rule.Name || decoded.Kind.Tag != KindSimple || decoded.ReduceLogic != ReduceAny {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestRuleKindDeltaWireName(t *testing.T) {
	var k RuleKind
	if err := json.Unmarshal([]byte(`"delta"`), &k); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if k.Tag != KindDelta {
		t.Fatalf("expected delta, got %+v", k)
	}
}
