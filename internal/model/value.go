package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the concrete representation carried by a MetricValue.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindNumber
	KindBool
	KindArray
)

// String reports the lowercase wire name for the kind.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is the tagged union over string/int/number/bool/array/null described
// in spec.md §3. Arrays are homogeneous by convention only; nothing in this
// type enforces that a caller's array elements share a kind.
type Value struct {
	kind ValueKind
	str  string
	i    int64
	f    float64
	b    bool
	arr  []Value
}

// Null is the zero-value-equivalent null MetricValue.
func Null() Value { return Value{kind: KindNull} }

// String constructs a string-kind value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int constructs a 64-bit signed integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Number constructs a 64-bit float value.
func Number(f float64) Value { return Value{kind: KindNumber, f: f} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array constructs an array value from the given elements.
func Array(elems ...Value) Value {
	cp := append([]Value(nil), elems...)
	return Value{kind: KindArray, arr: cp}
}

// Kind reports the tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload and whether the kind matched.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer payload and whether the kind matched.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsNumber returns the float payload and whether the kind matched.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.f, true
}

// AsBool returns the boolean payload and whether the kind matched.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsArray returns the array payload and whether the kind matched.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Float widens integer and number kinds to float64. ok is false for any
// other kind, matching spec.md §4.2.3's "numeric ops widen to float".
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindNumber:
		return v.f, true
	default:
		return 0, false
	}
}

// Render produces the human-readable witness rendering used by the
// evaluator (spec.md §4.2.2).
func (v Value) Render() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindNumber:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.Render()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("<unknown kind %d>", v.kind)
	}
}

// Equal implements spec.md §4.2.3's equality table: deep equality within a
// variant, false across variants except that null equals null, and
// integer/number mix freely (widened to float) per the polymorphic
// equality called out for AlertPredicateOperation in spec.md §3.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		if lf, lok := v.Float(); lok {
			if rf, rok := other.Float(); rok {
				return lf == rf
			}
		}
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.i == other.i
	case KindNumber:
		return v.f == other.f
	case KindBool:
		return v.b == other.b
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Less implements total order on the numeric-comparable variants only;
// cross-variant or non-numeric comparisons report ok=false so callers
//(predicate evaluation) can fall back to "comparison is false".
func (v Value) Less(other Value) (result bool, ok bool) {
	lf, lok := v.Float()
	rf, rok := other.Float()
	if !lok || !rok {
		return false, false
	}
	return lf < rf, true
}
