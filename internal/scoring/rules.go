// internal/scoring/rules.go
package scoring

import (
	"sort"
	"sync"

	"lead-automation/internal/models"
)

// RuleSet is the process-wide scoring configuration. It is changed only by
// administrative calls, never by the engine.
type RuleSet struct {
	mu    sync.RWMutex
	rules map[string]models.ScoringRule
	order []string
}

func NewRuleSet(rules []models.ScoringRule) *RuleSet {
	rs := &RuleSet{rules: map[string]models.ScoringRule{}}
	rs.Replace(rules)
	return rs
}

// Replace swaps the whole rule set, keeping the given order.
func (rs *RuleSet) Replace(rules []models.ScoringRule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = make(map[string]models.ScoringRule, len(rules))
	rs.order = rs.order[:0]
	for _, r := range rules {
		if _, dup := rs.rules[r.ID]; !dup {
			rs.order = append(rs.order, r.ID)
		}
		rs.rules[r.ID] = r
	}
}

// Upsert adds or replaces a single rule.
func (rs *RuleSet) Upsert(rule models.ScoringRule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.rules[rule.ID]; !ok {
		rs.order = append(rs.order, rule.ID)
	}
	rs.rules[rule.ID] = rule
}

// SetActive toggles a rule and reports whether it exists.
func (rs *RuleSet) SetActive(id string, active bool) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.rules[id]
	if !ok {
		return false
	}
	r.Active = active
	rs.rules[id] = r
	return true
}

// Active returns a snapshot of the active rules in definition order.
func (rs *RuleSet) Active() []models.ScoringRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]models.ScoringRule, 0, len(rs.order))
	for _, id := range rs.order {
		if r := rs.rules[id]; r.Active {
			out = append(out, r)
		}
	}
	return out
}

// All returns every rule sorted by id.
func (rs *RuleSet) All() []models.ScoringRule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]models.ScoringRule, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
