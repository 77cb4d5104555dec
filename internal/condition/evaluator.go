// internal/condition/evaluator.go
// Package condition evaluates field/operator/value conditions against
// nested records. Evaluation is total: missing fields, type mismatches and
// unknown operators all evaluate to false.
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lead-automation/internal/models"
)

// Lookup resolves a dotted path such as "company.industry" in record.
func Lookup(record map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	var current interface{} = record
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// Evaluate reports whether cond holds for record.
func Evaluate(record map[string]interface{}, cond models.Condition) bool {
	actual, found := Lookup(record, cond.Field)
	if cond.Operator == models.OpExists {
		if want, ok := cond.Value.(bool); ok && !want {
			return !found
		}
		return found
	}
	if !found {
		return false
	}

	switch cond.Operator {
	case models.OpEquals:
		return equal(actual, cond.Value)
	case models.OpNotEquals:
		return !equal(actual, cond.Value)
	case models.OpGreaterThan:
		a, ok1 := toFloat(actual)
		b, ok2 := toFloat(cond.Value)
		return ok1 && ok2 && a > b
	case models.OpLessThan:
		a, ok1 := toFloat(actual)
		b, ok2 := toFloat(cond.Value)
		return ok1 && ok2 && a < b
	case models.OpContains:
		return contains(actual, cond.Value)
	case models.OpStartsWith:
		s, ok1 := actual.(string)
		p, ok2 := cond.Value.(string)
		return ok1 && ok2 && strings.HasPrefix(s, p)
	case models.OpEndsWith:
		s, ok1 := actual.(string)
		p, ok2 := cond.Value.(string)
		return ok1 && ok2 && strings.HasSuffix(s, p)
	case models.OpIn:
		list, ok := toList(cond.Value)
		return ok && memberOf(actual, list)
	case models.OpNotIn:
		list, ok := toList(cond.Value)
		return ok && !memberOf(actual, list)
	default:
		return false
	}
}

// All reports whether every condition holds. An empty list holds.
func All(record map[string]interface{}, conds []models.Condition) bool {
	for _, c := range conds {
		if !Evaluate(record, c) {
			return false
		}
	}
	return true
}

func equal(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// contains is a case-insensitive substring test for strings and a
// membership test for lists.
func contains(actual, want interface{}) bool {
	if list, ok := toList(actual); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				if w, ok := want.(string); ok && strings.EqualFold(s, w) {
					return true
				}
				continue
			}
			if equal(item, want) {
				return true
			}
		}
		return false
	}
	s, ok1 := actual.(string)
	w, ok2 := want.(string)
	return ok1 && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(w))
}

func memberOf(actual interface{}, list []interface{}) bool {
	for _, item := range list {
		if equal(actual, item) {
			return true
		}
	}
	return false
}

func toList(v interface{}) ([]interface{}, bool) {
	switch l := v.(type) {
	case []interface{}:
		return l, true
	case []string:
		out := make([]interface{}, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]interface{}, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v interface{}) (float64, bool) {
	return toFloat(v)
}
