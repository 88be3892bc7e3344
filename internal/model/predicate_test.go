package model

import (
	"encoding/json"
	"testing"
)

func TestEvaluateOrderingMixedIntNumber(t *testing.T) {
	//1.- S1 from spec.md §8: icmp_rtt 74.58 > 75 is false; > 0 is true.
	if Evaluate(OpMoreThan, Number(74.58), Int(75)) {
		t.Fatalf("74.58 > 75 must be false")
	}
	if !Evaluate(OpMoreThan, Number(74.58), Int(0)) {
		t.Fatalf("74.58 > 0 must be true")
	}
}

func TestEvaluateOrderingTypeMismatchIsFalse(t *testing.T) {
	if Evaluate(OpMoreThan, Bool(true), Bool(false)) {
		t.Fatalf("ordering over bools must be false")
	}
	if Evaluate(OpMoreThan, String("a"), String("b")) {
		t.Fatalf("ordering over strings must be false")
	}
}

func TestEvaluateContainsString(t *testing.T) {
	if !Evaluate(OpContains, String("Unreachable host"), String("unreachable")) {
		t.Fatalf("case-insensitive substring must match")
	}
	if Evaluate(OpContains, String("Reachable"), String("down")) {
		t.Fatalf("substring mismatch must be false")
	}
}

func TestEvaluateContainsArray(t *testing.T) {
	arr := Array(String("a"), Int(2), Bool(true))
	if !Evaluate(OpContains, arr, Int(2)) {
		t.Fatalf("array contains must find exact element match")
	}
	if Evaluate(OpContains, arr, Int(3)) {
		t.Fatalf("array must not contain absent element")
	}
}

func TestEvaluateContainsWrongLeftKind(t *testing.T) {
	if Evaluate(OpContains, Int(5), Int(5)) {
		t.Fatalf("contains on a non-string non-array left operand must be false")
	}
}

func TestEvaluateUnknownAlwaysFalse(t *testing.T) {
	if Evaluate(OpUnknown, Int(1), Int(1)) {
		t.Fatalf("unknown op must always be false")
	}
}

func TestPredicateJSONBothConstantRejected(t *testing.T) {
	raw := `{"left": 1, "op": "equal", "right": 2}`
	var p Predicate
	if err := json.Unmarshal([]byte(raw), &p); err != ErrBothConstant {
		t.Fatalf("expected ErrBothConstant, got %v", err)
	}
}

func TestPredicateJSONLeftConst(t *testing.T) {
	raw := `{"left": 75, "op": "more_than", "right": "&icmp_rtt"}`
	var p Predicate
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Shape != ShapeLeftConst || p.RightAccessor != "icmp_rtt" {
		t.Fatalf("unexpected predicate: %+v", p)
	}
	lv, _ := p.LeftValue.AsInt()
	if lv != 75 {
		t.Fatalf("expected left constant 75, got %v", p.LeftValue)
	}
}

func TestPredicateJSONVariable(t *testing.T) {
	raw := `{"left": "&icmp_status", "op": "not_equal", "right": "&icmp_status"}`
	var p Predicate
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Shape != ShapeVariable || p.LeftAccessor != "icmp_status" || p.RightAccessor != "icmp_status" {
		t.Fatalf("unexpected predicate: %+v", p)
	}
}

func TestPredicateJSONRoundTrip(t *testing.T) {
	//1.- S5 from spec.md §8.
	original := NewRightConstPredicate(Modifier{Op: ModAdd, Operand: 0.5}, "icmp_rtt", OpMoreThan, Number(75), Modifier{Op: ModMul, Operand: 1.0})
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Predicate
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	data2, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if string(data) != string(data2) {
		t.Fatalf("round trip mismatch:\n%s\n%s", data, data2)
	}
}

func TestPredicateAccessorsByShape(t *testing.T) {
	p := NewVariablePredicate(Identity(), "a", OpEqual, "b", Identity())
	accs := p.Accessors()
	if len(accs) != 2 || accs[0] != "a" || accs[1] != "b" {
		t.Fatalf("unexpected accessors: %v", accs)
	}
}
