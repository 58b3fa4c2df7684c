// Package rules implements the rule evaluator: operator dispatch, the
// per-cycle evaluation loop, debouncing, and the atomically published
// cycle snapshot consumed by the read-only HTTP API.
package rules

import "github.com/freddez/eplumber/internal/pkg/application/config"

// Compare evaluates op(current, want). It never panics: a type
// mismatch between current and want (e.g. comparing a bool sensor
// against a string literal) simply yields false for non-comparable
// operands — evaluation must never be the thing that crashes the
// loop.
func Compare(op config.Operator, current, want any) bool {
	switch c := current.(type) {
	case float64:
		w, ok := toFloat(want)
		if !ok {
			return false
		}
		return numericCompare(op, c, w)
	case int64:
		w, ok := toFloat(want)
		if !ok {
			return false
		}
		return numericCompare(op, float64(c), w)
	case bool:
		w, ok := want.(bool)
		if !ok {
			return false
		}
		return boolCompare(op, c, w)
	case string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		return stringCompare(op, c, w)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func numericCompare(op config.Operator, a, b float64) bool {
	switch op {
	case config.OpLT:
		return a < b
	case config.OpLE:
		return a <= b
	case config.OpGT:
		return a > b
	case config.OpGE:
		return a >= b
	case config.OpEQ:
		return a == b
	case config.OpNE:
		return a != b
	default:
		return false
	}
}

func boolCompare(op config.Operator, a, b bool) bool {
	switch op {
	case config.OpEQ:
		return a == b
	case config.OpNE:
		return a != b
	default:
		return false
	}
}

// stringCompare does a lexicographic compare for ordering operators,
// exact equality for ==/!=.
func stringCompare(op config.Operator, a, b string) bool {
	switch op {
	case config.OpLT:
		return a < b
	case config.OpLE:
		return a <= b
	case config.OpGT:
		return a > b
	case config.OpGE:
		return a >= b
	case config.OpEQ:
		return a == b
	case config.OpNE:
		return a != b
	default:
		return false
	}
}
