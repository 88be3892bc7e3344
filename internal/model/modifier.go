package model

import (
	"math"
	"strconv"
	"strings"
)

// ModifierOp enumerates the unary OperandModifier variants from spec.md §3.
type ModifierOp int

const (
	ModIdentity ModifierOp = iota
	ModAdd
	ModMul
	ModRem
	ModMod
	ModPow
	ModCeil
	ModFloor
	ModRound
	ModTruncate
	ModAppend
	ModPrepend
	ModTrim
	ModLower
	ModUpper
	ModReplace
	ModReplaceN
	ModToString
	ModBitAnd
	ModBitOr
	ModBitXor
	ModLShift
	ModRShift
	ModComplement
	ModMulti
)

// Modifier is one unary transformation, or a Multi sequence of them applied
// left to right (spec.md §3, §9).
type Modifier struct {
	Op ModifierOp

	// Arithmetic/bitwise operand (Add/Mul/Rem/Mod/Pow/BitAnd/BitOr/BitXor/
	// LShift/RShift).
	Operand float64

	// String operands.
	Str     string // Append/Prepend
	Pattern string // Replace/ReplaceN
	With    string // Replace/ReplaceN
	Count   int    // ReplaceN

	// Multi is the composed sequence for ModMulti.
	Multi []Modifier
}

// Identity is the modifier that passes a value through unchanged.
func Identity() Modifier { return Modifier{Op: ModIdentity} }

// Apply runs the modifier (or, for Multi, the iterative fold over its
// sequence) against a value. A type mismatch between the modifier and the
// value's kind logs via the supplied sink and returns the value unchanged,
// per spec.md §3's "Applying a modifier to an incompatible value logs and
// returns the value unchanged" and the failure table in spec.md §6.
func (m Modifier) Apply(v Value, warn func(msg string)) Value {
	if warn == nil {
		warn = func(string) {}
	}
	// 1.- Multi is folded iteratively, never recursed, per spec.md §9's
	// guidance against adversarial nesting depth blowing the call stack:
	// nested Multi steps are expanded onto an explicit work stack.
	if m.Op == ModMulti {
		result := v
		pending := []Modifier{m}
		for len(pending) > 0 {
			step := pending[len(pending)-1]
			pending = pending[:len(pending)-1]
			if step.Op == ModMulti {
				for i := len(step.Multi) - 1; i >= 0; i-- {
					pending = append(pending, step.Multi[i])
				}
				continue
			}
			result = applyOne(step, result, warn)
		}
		return result
	}
	return applyOne(m, v, warn)
}

func applyOne(m Modifier, v Value, warn func(string)) Value {
	switch m.Op {
	case ModIdentity:
		return v
	case ModAdd, ModMul, ModRem, ModMod, ModPow:
		return applyArithmetic(m, v, warn)
	case ModCeil, ModFloor, ModRound, ModTruncate:
		return applyRounding(m, v, warn)
	case ModAppend, ModPrepend, ModTrim, ModLower, ModUpper, ModReplace, ModReplaceN:
		return applyString(m, v, warn)
	case ModToString:
		return String(v.Render())
	case ModBitAnd, ModBitOr, ModBitXor, ModLShift, ModRShift, ModComplement:
		return applyBitwise(m, v, warn)
	default:
		warn("model: unknown modifier op")
		return v
	}
}

func applyArithmetic(m Modifier, v Value, warn func(string)) Value {
	f, ok := v.Float()
	if !ok {
		warn("model: arithmetic modifier applied to non-numeric value")
		return v
	}
	switch m.Op {
	case ModAdd:
		return numericLike(v, f+m.Operand)
	case ModMul:
		return numericLike(v, f*m.Operand)
	case ModRem:
		if m.Operand == 0 {
			warn("model: modifier rem by zero")
			return v
		}
		return numericLike(v, math.Mod(f, m.Operand))
	case ModMod:
		if m.Operand == 0 {
			warn("model: modifier mod by zero")
			return v
		}
		r := math.Mod(f, m.Operand)
		if r != 0 && (r < 0) != (m.Operand < 0) {
			r += m.Operand
		}
		return numericLike(v, r)
	case ModPow:
		return numericLike(v, math.Pow(f, m.Operand))
	}
	return v
}

func applyRounding(m Modifier, v Value, warn func(string)) Value {
	f, ok := v.Float()
	if !ok {
		warn("model: rounding modifier applied to non-numeric value")
		return v
	}
	switch m.Op {
	case ModCeil:
		return Number(math.Ceil(f))
	case ModFloor:
		return Number(math.Floor(f))
	case ModRound:
		return Number(math.Round(f))
	case ModTruncate:
		return Number(math.Trunc(f))
	}
	return v
}

// numericLike preserves the Int kind when the source value was an integer
// and the result is itself integral, otherwise returns Number.
func numericLike(src Value, f float64) Value {
	if _, wasInt := src.AsInt(); wasInt && f == math.Trunc(f) {
		return Int(int64(f))
	}
	return Number(f)
}

func applyString(m Modifier, v Value, warn func(string)) Value {
	s, ok := v.AsString()
	if !ok {
		warn("model: string modifier applied to non-string value")
		return v
	}
	switch m.Op {
	case ModAppend:
		return String(s + m.Str)
	case ModPrepend:
		return String(m.Str + s)
	case ModTrim:
		return String(strings.TrimSpace(s))
	case ModLower:
		return String(strings.ToLower(s))
	case ModUpper:
		return String(strings.ToUpper(s))
	case ModReplace:
		return String(strings.ReplaceAll(s, m.Pattern, m.With))
	case ModReplaceN:
		return String(strings.Replace(s, m.Pattern, m.With, m.Count))
	}
	return v
}

func applyBitwise(m Modifier, v Value, warn func(string)) Value {
	i, ok := v.AsInt()
	if !ok {
		warn("model: bitwise modifier applied to non-integer value")
		return v
	}
	operand := int64(m.Operand)
	switch m.Op {
	case ModBitAnd:
		return Int(i & operand)
	case ModBitOr:
		return Int(i | operand)
	case ModBitXor:
		return Int(i ^ operand)
	case ModLShift:
		return Int(i << uint(operand))
	case ModRShift:
		return Int(i >> uint(operand))
	case ModComplement:
		return Int(^i)
	}
	return v
}

func (m ModifierOp) String() string {
	switch m {
	case ModIdentity:
		return "identity"
	case ModAdd:
		return "add"
	case ModMul:
		return "mul"
	case ModRem:
		return "rem"
	case ModMod:
		return "mod"
	case ModPow:
		return "pow"
	case ModCeil:
		return "ceil"
	case ModFloor:
		return "floor"
	case ModRound:
		return "round"
	case ModTruncate:
		return "truncate"
	case ModAppend:
		return "append"
	case ModPrepend:
		return "prepend"
	case ModTrim:
		return "trim"
	case ModLower:
		return "lower"
	case ModUpper:
		return "upper"
	case ModReplace:
		return "replace"
	case ModReplaceN:
		return "replace-n"
	case ModToString:
		return "to-string"
	case ModBitAnd:
		return "and"
	case ModBitOr:
		return "or"
	case ModBitXor:
		return "xor"
	case ModLShift:
		return "lshift"
	case ModRShift:
		return "rshift"
	case ModComplement:
		return "complement"
	case ModMulti:
		return "multi"
	default:
		return "unknown:" + strconv.Itoa(int(m))
	}
}
