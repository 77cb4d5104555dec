// internal/models/abtest.go
package models

import "time"

type ABTestStatus string

const (
	ABTestDraft     ABTestStatus = "draft"
	ABTestRunning   ABTestStatus = "running"
	ABTestCompleted ABTestStatus = "completed"
)

// Variant is one arm of an experiment. The first variant of a test is the
// control.
type Variant struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Visitors    int     `json:"visitors"`
	Conversions int     `json:"conversions"`
}

func (v Variant) ConversionRate() float64 {
	if v.Visitors == 0 {
		return 0
	}
	return float64(v.Conversions) / float64(v.Visitors)
}

type ABTest struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Status   ABTestStatus `json:"status"`
	Variants []Variant    `json:"variants"`
	// Assignments maps lead id to variant id.
	Assignments map[string]string `json:"assignments,omitempty"`
	// Converted holds the leads already counted as conversions.
	Converted map[string]bool `json:"converted,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (t *ABTest) Clone() *ABTest {
	if t == nil {
		return nil
	}
	c := *t
	c.Variants = append([]Variant(nil), t.Variants...)
	if t.Assignments != nil {
		c.Assignments = make(map[string]string, len(t.Assignments))
		for k, v := range t.Assignments {
			c.Assignments[k] = v
		}
	}
	if t.Converted != nil {
		c.Converted = make(map[string]bool, len(t.Converted))
		for k, v := range t.Converted {
			c.Converted[k] = v
		}
	}
	return &c
}

// ABTestResult is the outcome of a two-variant significance test.
// WinningVariant is empty unless the result is significant.
type ABTestResult struct {
	TestID         string  `json:"testId"`
	ControlID      string  `json:"controlId"`
	VariantID      string  `json:"variantId"`
	ControlRate    float64 `json:"controlRate"`
	VariantRate    float64 `json:"variantRate"`
	Uplift         float64 `json:"uplift"`
	ZScore         float64 `json:"zScore"`
	PValue         float64 `json:"pValue"`
	Confidence     float64 `json:"confidence"`
	Significant    bool    `json:"significant"`
	WinningVariant string  `json:"winningVariant,omitempty"`
}
