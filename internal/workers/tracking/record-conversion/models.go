// internal/workers/tracking/record-conversion/models.go
package recordconversion

import "time"

type Input struct {
	// ConversionID is the caller's key for the conversion; a retried job
	// with the same key does not record it twice.
	ConversionID string    `json:"conversionId"`
	LeadID       string    `json:"leadId"`
	EventType    string    `json:"eventType"`
	Value        float64   `json:"value"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurredAt"`
	// Model selects which attribution distribution is returned to the
	// process; all five are stored with the conversion.
	Model string `json:"attributionModel"`
}

type Output struct {
	ConversionID string
	LeadID       string
	Model        string
	Credits      []map[string]interface{}
	ExecutionIDs []string
	Duplicate    bool
}

func (o *Output) Variables() map[string]interface{} {
	ids := o.ExecutionIDs
	if ids == nil {
		ids = []string{}
	}
	return map[string]interface{}{
		"conversionId":       o.ConversionID,
		"leadId":             o.LeadID,
		"attributionModel":   o.Model,
		"attributionCredits": o.Credits,
		"executionIds":       ids,
		"duplicate":          o.Duplicate,
	}
}
