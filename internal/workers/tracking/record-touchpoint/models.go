// internal/workers/tracking/record-touchpoint/models.go
package recordtouchpoint

import (
	"time"

	"lead-automation/internal/models"
)

type Input struct {
	LeadID     string                   `json:"leadId"`
	Email      string                   `json:"email"`
	Type       string                   `json:"type"`
	Timestamp  time.Time                `json:"timestamp"`
	Source     models.TouchpointSource  `json:"source"`
	Engagement models.Engagement        `json:"engagement"`
	Content    models.TouchpointContent `json:"content"`
	Metadata   map[string]interface{}   `json:"metadata"`
	Profile    Profile                  `json:"profile"`
}

type Profile struct {
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	JobTitle  string         `json:"jobTitle"`
	Phone     string         `json:"phone"`
	Source    string         `json:"source"`
	Company   models.Company `json:"company"`
}

type Output struct {
	TouchpointID string   `json:"touchpointId"`
	LeadID       string   `json:"leadId"`
	LeadCreated  bool     `json:"leadCreated"`
	LeadScore    int      `json:"leadScore"`
	JourneyStage string   `json:"journeyStage"`
	StageChanged bool     `json:"stageChanged"`
	ExecutionIDs []string `json:"executionIds"`
}

func (o *Output) Variables() map[string]interface{} {
	ids := o.ExecutionIDs
	if ids == nil {
		ids = []string{}
	}
	return map[string]interface{}{
		"touchpointId": o.TouchpointID,
		"leadId":       o.LeadID,
		"leadCreated":  o.LeadCreated,
		"leadScore":    o.LeadScore,
		"journeyStage": o.JourneyStage,
		"stageChanged": o.StageChanged,
		"executionIds": ids,
	}
}
