package model

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON renders an operand-less modifier (identity, ceil, trim, ...)
// as its bare op-name string, and any other modifier as a single-key object
// keyed by its op name, matching the tagged encoding used throughout the
// rule JSON shape (spec.md §6).
func (m Modifier) MarshalJSON() ([]byte, error) {
	switch m.Op {
	case ModIdentity:
		return json.Marshal("identity")
	case ModAdd, ModMul, ModRem, ModMod, ModPow, ModBitAnd, ModBitOr, ModBitXor, ModLShift, ModRShift:
		return json.Marshal(map[string]float64{m.Op.String(): m.Operand})
	case ModCeil, ModFloor, ModRound, ModTruncate, ModToString, ModComplement:
		return json.Marshal(m.Op.String())
	case ModAppend, ModPrepend:
		return json.Marshal(map[string]string{m.Op.String(): m.Str})
	case ModTrim, ModLower, ModUpper:
		return json.Marshal(m.Op.String())
	case ModReplace:
		return json.Marshal(map[string]replacePayload{"replace": {Pattern: m.Pattern, With: m.With}})
	case ModReplaceN:
		return json.Marshal(map[string]replaceNPayload{"replace-n": {Pattern: m.Pattern, With: m.With, Count: m.Count}})
	case ModMulti:
		return json.Marshal(map[string][]Modifier{"multi": m.Multi})
	default:
		return nil, fmt.Errorf("model: marshal modifier: unknown op %v", m.Op)
	}
}

type replacePayload struct {
	Pattern string `json:"pat"`
	With    string `json:"with"`
}

type replaceNPayload struct {
	Pattern string `json:"pat"`
	With    string `json:"with"`
	Count   int    `json:"count"`
}

// UnmarshalJSON accepts either a bare string ("identity", "trim", "ceil",
// ...) or a single-key object carrying the op's operand.
func (m *Modifier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		op, ok := simpleModifierOps[name]
		if !ok {
			return fmt.Errorf("model: unknown modifier %q", name)
		}
		*m = Modifier{Op: op}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("model: modifier must be a string or single-key object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("model: modifier object must carry exactly one key, got %d", len(obj))
	}
	for key, raw := range obj {
		switch key {
		case "add", "mul", "rem", "mod", "pow", "and", "or", "xor", "lshift", "rshift":
			var operand float64
			if err := json.Unmarshal(raw, &operand); err != nil {
				return fmt.Errorf("model: modifier %q operand: %w", key, err)
			}
			*m = Modifier{Op: operandModifierOps[key], Operand: operand}
			return nil
		case "append", "prepend":
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("model: modifier %q operand: %w", key, err)
			}
			op := ModAppend
			if key == "prepend" {
				op = ModPrepend
			}
			*m = Modifier{Op: op, Str: s}
			return nil
		case "replace":
			var p replacePayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("model: modifier replace operand: %w", err)
			}
			*m = Modifier{Op: ModReplace, Pattern: p.Pattern, With: p.With}
			return nil
		case "replace-n":
			var p replaceNPayload
			if err := json.Unmarshal(raw, &p); err != nil {
				return fmt.Errorf("model: modifier replace-n operand: %w", err)
			}
			*m = Modifier{Op: ModReplaceN, Pattern: p.Pattern, With: p.With, Count: p.Count}
			return nil
		case "multi":
			var steps []Modifier
			if err := json.Unmarshal(raw, &steps); err != nil {
				return fmt.Errorf("model: modifier multi operand: %w", err)
			}
			*m = Modifier{Op: ModMulti, Multi: steps}
			return nil
		default:
			return fmt.Errorf("model: unknown modifier key %q", key)
		}
	}
	return nil
}

var simpleModifierOps = map[string]ModifierOp{
	"identity":   ModIdentity,
	"ceil":       ModCeil,
	"floor":      ModFloor,
	"round":      ModRound,
	"truncate":   ModTruncate,
	"trim":       ModTrim,
	"lower":      ModLower,
	"upper":      ModUpper,
	"to-string":  ModToString,
	"complement": ModComplement,
}

var operandModifierOps = map[string]ModifierOp{
	"add":    ModAdd,
	"mul":    ModMul,
	"rem":    ModRem,
	"mod":    ModMod,
	"pow":    ModPow,
	"and":    ModBitAnd,
	"or":     ModBitOr,
	"xor":    ModBitXor,
	"lshift": ModLShift,
	"rshift": ModRShift,
}
