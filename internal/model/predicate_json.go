package model

import (
	"encoding/json"
	"fmt"
)

// accessorPrefix marks a JSON string operand as an accessor rather than a
// string constant (spec.md §3, §6, §9).
const accessorPrefix = "&"

type predicateJSON struct {
	LeftModifier  *Modifier       `json:"left-modifier,omitempty"`
	Left          json.RawMessage `json:"left"`
	Op            string          `json:"op"`
	Right         json.RawMessage `json:"right"`
	RightModifier *Modifier       `json:"right-modifier,omitempty"`
}

// operand is the result of classifying one JSON operand as either an
// accessor string or a constant Value.
type operand struct {
	accessor string
	value    Value
	isAccess bool
}

func decodeOperand(raw json.RawMessage) (operand, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if len(asString) > 0 && asString[0:1] == accessorPrefix {
			return operand{accessor: asString[1:], isAccess: true}, nil
		}
		return operand{value: String(asString)}, nil
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return operand{}, fmt.Errorf("model: decode predicate operand: %w", err)
	}
	return operand{value: v}, nil
}

func encodeOperand(o operand) (json.RawMessage, error) {
	if o.isAccess {
		return json.Marshal(accessorPrefix + o.accessor)
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON parses the predicate JSON shape from spec.md §6, resolving
// the `&`-accessor convention at this single boundary (spec.md §9) and
// rejecting both-constant predicates (spec.md §3, §7).
func (p *Predicate) UnmarshalJSON(data []byte) error {
	var raw predicateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("model: decode predicate: %w", err)
	}

	op, err := ParseOp(raw.Op)
	if err != nil {
		return err
	}

	left, err := decodeOperand(raw.Left)
	if err != nil {
		return err
	}
	right, err := decodeOperand(raw.Right)
	if err != nil {
		return err
	}

	leftMod := Identity()
	if raw.LeftModifier != nil {
		leftMod = *raw.LeftModifier
	}
	rightMod := Identity()
	if raw.RightModifier != nil {
		rightMod = *raw.RightModifier
	}

	switch {
	case left.isAccess && right.isAccess:
		*p = NewVariablePredicate(leftMod, left.accessor, op, right.accessor, rightMod)
	case left.isAccess && !right.isAccess:
		*p = NewRightConstPredicate(leftMod, left.accessor, op, right.value, rightMod)
	case !left.isAccess && right.isAccess:
		*p = NewLeftConstPredicate(leftMod, left.value, op, right.accessor, rightMod)
	default:
		return ErrBothConstant
	}
	return nil
}

// MarshalJSON renders the predicate back to the spec.md §6 wire shape.
func (p Predicate) MarshalJSON() ([]byte, error) {
	var leftOp, rightOp operand
	switch p.Shape {
	case ShapeLeftConst:
		leftOp = operand{value: p.LeftValue}
		rightOp = operand{accessor: p.RightAccessor, isAccess: true}
	case ShapeRightConst:
		leftOp = operand{accessor: p.LeftAccessor, isAccess: true}
		rightOp = operand{value: p.RightValue}
	case ShapeVariable:
		leftOp = operand{accessor: p.LeftAccessor, isAccess: true}
		rightOp = operand{accessor: p.RightAccessor, isAccess: true}
	default:
		return nil, fmt.Errorf("model: marshal predicate: unknown shape %v", p.Shape)
	}

	leftRaw, err := encodeOperand(leftOp)
	if err != nil {
		return nil, err
	}
	rightRaw, err := encodeOperand(rightOp)
	if err != nil {
		return nil, err
	}

	out := predicateJSON{Left: leftRaw, Op: p.Op.String(), Right: rightRaw}
	if p.LeftMod.Op != ModIdentity {
		mod := p.LeftMod
		out.LeftModifier = &mod
	}
	if p.RightMod.Op != ModIdentity {
		mod := p.RightMod
		out.RightModifier = &mod
	}
	return json.Marshal(out)
}
