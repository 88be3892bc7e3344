package evaluator

import (
	"fmt"
	"strings"

	"github.com/fleetalert/engine/internal/model"
)

// evaluatePredicates implements spec.md §4.2.2: for every predicate of
// rule, resolve both operands, apply modifiers, compare, and collect a
// witness string per firing predicate. isDelta selects which delivery each
// accessor side reads from, per spec.md §4.2.1's delta rule: "the left
// accessor reading from D_prev and the right accessor from D_cur".
func (e *Evaluator) evaluatePredicates(rule model.Rule, current, priorSource model.Delivery, hostname string, isDelta bool) (fired bool, witness string) {
	results := make([]bool, len(rule.Predicates))
	witnesses := make([]string, len(rule.Predicates))

	for i, pred := range rule.Predicates {
		left, leftOK := e.resolveOperand(pred, true, current, priorSource, hostname, isDelta)
		right, rightOK := e.resolveOperand(pred, false, current, priorSource, hostname, isDelta)
		if !leftOK || !rightOK {
			continue
		}
		if model.Evaluate(pred.Op, left, right) {
			results[i] = true
			witnesses[i] = renderWitness(pred, left, right)
		}
	}

	if !reduce(rule.ReduceLogic, results) {
		return false, ""
	}

	switch rule.ReduceLogic {
	case model.ReduceAny:
		for _, w := range witnesses {
			if w != "" {
				return true, w
			}
		}
		return true, ""
	default: // ReduceAll: every predicate is true, so every witness fired.
		nonEmpty := make([]string, 0, len(witnesses))
		for _, w := range witnesses {
			if w != "" {
				nonEmpty = append(nonEmpty, w)
			}
		}
		return true, strings.Join(nonEmpty, ", ")
	}
}

// reduce folds per-predicate results per spec.md §3's AlertReduceLogic.
// ReduceUnknown always evaluates false and is logged by the caller's
// rule-cache reload path, never here (spec.md §4.2.2 has no per-tick log
// for this, only the reload-time parse warning).
func reduce(logic model.ReduceLogic, results []bool) bool {
	switch logic {
	case model.ReduceAll:
		if len(results) == 0 {
			return false
		}
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	case model.ReduceAny:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// resolveOperand resolves one side of a predicate to a concrete, modified
// Value. For delta evaluation the left accessor reads from priorSource
// (D_prev) and the right accessor reads from current (D_cur); for
// non-delta both read from current.
func (e *Evaluator) resolveOperand(pred model.Predicate, isLeft bool, current, priorSource model.Delivery, hostname string, isDelta bool) (model.Value, bool) {
	var raw model.Value
	var ok bool

	switch pred.Shape {
	case model.ShapeLeftConst:
		if isLeft {
			raw, ok = pred.LeftValue, true
		} else {
			raw, ok = current.Accessor(hostname, pred.RightAccessor)
		}
	case model.ShapeRightConst:
		if isLeft {
			raw, ok = e.deliveryFor(true, isDelta, current, priorSource).Accessor(hostname, pred.LeftAccessor)
		} else {
			raw, ok = pred.RightValue, true
		}
	case model.ShapeVariable:
		if isLeft {
			raw, ok = e.deliveryFor(true, isDelta, current, priorSource).Accessor(hostname, pred.LeftAccessor)
		} else {
			raw, ok = current.Accessor(hostname, pred.RightAccessor)
		}
	default:
		return model.Value{}, false
	}
	if !ok {
		return model.Value{}, false
	}

	mod := pred.RightMod
	if isLeft {
		mod = pred.LeftMod
	}
	return mod.Apply(raw, e.modifierWarn), true
}

// deliveryFor resolves which delivery a left-side accessor reads from:
// D_prev under delta evaluation, D_cur otherwise.
func (e *Evaluator) deliveryFor(isLeft, isDelta bool, current, priorSource model.Delivery) model.Delivery {
	if isLeft && isDelta {
		return priorSource
	}
	return current
}

// renderWitness formats a firing predicate as "[lhs{lmod} op rhs{rmod}]"
// (spec.md §4.2.2). Each side is labelled by its accessor name when the
// predicate names one, and by its resolved constant value otherwise, so the
// witness identifies which metric raised rather than only its value
// (spec.md §8's seed scenario S1 requires the witness to contain the
// accessor name, e.g. "icmp_rtt").
func renderWitness(pred model.Predicate, left, right model.Value) string {
	return fmt.Sprintf("[%s{%s} %s %s{%s}]",
		operandLabel(pred, true, left), pred.LeftMod.Op.String(),
		pred.Op.String(),
		operandLabel(pred, false, right), pred.RightMod.Op.String(),
	)
}

func operandLabel(pred model.Predicate, isLeft bool, resolved model.Value) string {
	switch pred.Shape {
	case model.ShapeLeftConst:
		if isLeft {
			return resolved.Render()
		}
		return pred.RightAccessor
	case model.ShapeRightConst:
		if isLeft {
			return pred.LeftAccessor
		}
		return resolved.Render()
	case model.ShapeVariable:
		if isLeft {
			return pred.LeftAccessor
		}
		return pred.RightAccessor
	default:
		return resolved.Render()
	}
}

// modifierWarn adapts the evaluator's logger into the model package's
// warn-sink signature expected by Modifier.Apply.
func (e *Evaluator) modifierWarn(msg string) {
	e.warnf("%s", msg)
}
