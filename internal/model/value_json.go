package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MarshalJSON renders the value using its natural JSON representation so
// round-tripping a rule's constant operands is lossless (spec.md §8
// property 6).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.i)
	case KindNumber:
		out, err := json.Marshal(v.f)
		if err != nil {
			return nil, err
		}
		// An integral float marshals as "75", which would decode back as
		// Int; the fraction keeps the Number kind visible in the literal.
		if !bytes.ContainsAny(out, ".eE") {
			out = append(out, ".0"...)
		}
		return out, nil
	case KindBool:
		return json.Marshal(v.b)
	case KindArray:
		return json.Marshal(v.arr)
	default:
		return nil, fmt.Errorf("model: marshal value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON decodes a constant operand. Accessors are not handled here:
// the `&`-prefix convention is parsed one layer up, at the predicate
// boundary, per spec.md §9 ("parse the tagged form at the boundary and
// never re-parse inside the hot path").
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := fromInterface(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func fromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberFromJSON(t)
	case []interface{}:
		elems := make([]Value, 0, len(t))
		for _, item := range t {
			elem, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, elem)
		}
		return Array(elems...), nil
	default:
		return Value{}, fmt.Errorf("model: unsupported JSON value type %T", raw)
	}
}

// numberFromJSON distinguishes the Integer and Number variants by literal
// form: a bare digit sequence decodes as Int, anything with a fraction or
// exponent decodes as Number.
func numberFromJSON(n json.Number) (Value, error) {
	raw := n.String()
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Value{}, fmt.Errorf("model: invalid numeric literal %q: %w", raw, err)
	}
	return Number(f), nil
}
