// internal/models/scoring.go
package models

type RuleFrequency string

const (
	FrequencyOnce     RuleFrequency = "once"
	FrequencyMultiple RuleFrequency = "multiple"
)

type RuleCategory string

const (
	CategoryDemographic  RuleCategory = "demographic"
	CategoryFirmographic RuleCategory = "firmographic"
	CategoryBehavioral   RuleCategory = "behavioral"
	CategoryEngagement   RuleCategory = "engagement"
)

// PerTouchpoint reports whether rules of this category are evaluated
// against each touchpoint rather than once against the lead.
func (c RuleCategory) PerTouchpoint() bool {
	return c == CategoryBehavioral || c == CategoryEngagement
}

type ScoringRule struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Condition Condition     `json:"condition"`
	Points    int           `json:"points"`
	Frequency RuleFrequency `json:"frequency"`
	Category  RuleCategory  `json:"category"`
	Active    bool          `json:"active"`
}
