// internal/condition/evaluator_test.go
package condition

import (
	"testing"

	"lead-automation/internal/models"

	"github.com/stretchr/testify/assert"
)

func testRecord() map[string]interface{} {
	return map[string]interface{}{
		"email": "Jane@Acme.io",
		"score": 55,
		"company": map[string]interface{}{
			"industry": "Software",
			"size":     250,
		},
		"tags":    []interface{}{"Enterprise", "webinar"},
		"country": "DE",
		"empty":   nil,
	}
}

func TestEvaluate_Operators(t *testing.T) {
	tests := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"equals string", models.Condition{Field: "country", Operator: models.OpEquals, Value: "DE"}, true},
		{"equals int vs float", models.Condition{Field: "score", Operator: models.OpEquals, Value: 55.0}, true},
		{"not equals", models.Condition{Field: "country", Operator: models.OpNotEquals, Value: "US"}, true},
		{"greater than nested", models.Condition{Field: "company.size", Operator: models.OpGreaterThan, Value: 100}, true},
		{"greater than numeric string", models.Condition{Field: "score", Operator: models.OpGreaterThan, Value: "60"}, false},
		{"less than", models.Condition{Field: "score", Operator: models.OpLessThan, Value: 60}, true},
		{"contains case insensitive", models.Condition{Field: "email", Operator: models.OpContains, Value: "acme"}, true},
		{"contains list member", models.Condition{Field: "tags", Operator: models.OpContains, Value: "enterprise"}, true},
		{"contains list miss", models.Condition{Field: "tags", Operator: models.OpContains, Value: "smb"}, false},
		{"starts with is case sensitive", models.Condition{Field: "email", Operator: models.OpStartsWith, Value: "jane"}, false},
		{"starts with", models.Condition{Field: "email", Operator: models.OpStartsWith, Value: "Jane"}, true},
		{"ends with", models.Condition{Field: "email", Operator: models.OpEndsWith, Value: ".io"}, true},
		{"in", models.Condition{Field: "country", Operator: models.OpIn, Value: []interface{}{"DE", "FR"}}, true},
		{"in string slice", models.Condition{Field: "company.industry", Operator: models.OpIn, Value: []string{"Retail"}}, false},
		{"not in", models.Condition{Field: "country", Operator: models.OpNotIn, Value: []interface{}{"US"}}, true},
		{"exists", models.Condition{Field: "company.industry", Operator: models.OpExists}, true},
		{"exists false on missing", models.Condition{Field: "company.revenue", Operator: models.OpExists, Value: false}, true},
		{"unknown operator", models.Condition{Field: "country", Operator: "matches_regex", Value: "DE"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(testRecord(), tt.cond))
		})
	}
}

func TestEvaluate_MissingFieldIsAlwaysFalse(t *testing.T) {
	ops := []models.Operator{
		models.OpEquals, models.OpNotEquals, models.OpGreaterThan, models.OpLessThan,
		models.OpContains, models.OpStartsWith, models.OpEndsWith, models.OpIn,
		models.OpNotIn, models.OpExists,
	}
	for _, op := range ops {
		for _, field := range []string{"missing", "company.missing", "country.nested", "empty", ""} {
			cond := models.Condition{Field: field, Operator: op, Value: []interface{}{"x"}}
			assert.False(t, Evaluate(testRecord(), cond), "%s on %q", op, field)
		}
	}
}

func TestEvaluate_TypeMismatchIsFalse(t *testing.T) {
	assert.False(t, Evaluate(testRecord(), models.Condition{Field: "company", Operator: models.OpGreaterThan, Value: 1}))
	assert.False(t, Evaluate(testRecord(), models.Condition{Field: "score", Operator: models.OpStartsWith, Value: "5"}))
	assert.False(t, Evaluate(testRecord(), models.Condition{Field: "country", Operator: models.OpIn, Value: "DE"}))
}

func TestAll(t *testing.T) {
	rec := testRecord()
	assert.True(t, All(rec, nil))
	assert.True(t, All(rec, []models.Condition{
		{Field: "country", Operator: models.OpEquals, Value: "DE"},
		{Field: "score", Operator: models.OpGreaterThan, Value: 50},
	}))
	assert.False(t, All(rec, []models.Condition{
		{Field: "country", Operator: models.OpEquals, Value: "DE"},
		{Field: "score", Operator: models.OpGreaterThan, Value: 90},
	}))
}
