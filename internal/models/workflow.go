// internal/models/workflow.go
package models

import "time"

type TriggerType string

const (
	TriggerTouchpointRecorded TriggerType = "touchpoint_recorded"
	TriggerScoreThreshold     TriggerType = "score_threshold"
	TriggerStageChanged       TriggerType = "stage_changed"
	TriggerTagAdded           TriggerType = "tag_added"
	TriggerConversion         TriggerType = "conversion"
	TriggerScheduled          TriggerType = "scheduled"
	TriggerManual             TriggerType = "manual"
)

// Trigger decides which events start a workflow. Only the fields relevant
// to Type are consulted; Filters are matched against the trigger data.
type Trigger struct {
	Type            TriggerType      `json:"type"`
	TouchpointTypes []TouchpointType `json:"touchpointTypes,omitempty"`
	MinScore        int              `json:"minScore,omitempty"`
	Stage           Stage            `json:"stage,omitempty"`
	Tag             string           `json:"tag,omitempty"`
	ScheduledAt     *time.Time       `json:"scheduledAt,omitempty"`
	SegmentID       string           `json:"segmentId,omitempty"`
	Filters         []Condition      `json:"filters,omitempty"`
}

type WorkflowSettings struct {
	// MaxExecutionsPerContact of 0 means unlimited.
	MaxExecutionsPerContact int    `json:"maxExecutionsPerContact"`
	CooldownMinutes         int    `json:"cooldownMinutes"`
	TimeZone                string `json:"timeZone,omitempty"`
}

func (s WorkflowSettings) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes) * time.Minute
}

type ActionStats struct {
	ExecutionCount    int     `json:"executionCount"`
	SuccessCount      int     `json:"successCount"`
	FailureCount      int     `json:"failureCount"`
	AverageDurationMs float64 `json:"averageDurationMs"`
}

// WorkflowAnalytics is cumulative across every execution of a workflow.
type WorkflowAnalytics struct {
	TotalExecutions          int                     `json:"totalExecutions"`
	CompletedExecutions      int                     `json:"completedExecutions"`
	FailedExecutions         int                     `json:"failedExecutions"`
	CancelledExecutions      int                     `json:"cancelledExecutions"`
	AverageCompletionSeconds float64                 `json:"averageCompletionSeconds"`
	ActionStats              map[string]*ActionStats `json:"actionStats,omitempty"`
}

func (a WorkflowAnalytics) Clone() WorkflowAnalytics {
	if a.ActionStats != nil {
		stats := make(map[string]*ActionStats, len(a.ActionStats))
		for k, v := range a.ActionStats {
			s := *v
			stats[k] = &s
		}
		a.ActionStats = stats
	}
	return a
}

type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Active      bool              `json:"active"`
	Trigger     Trigger           `json:"trigger"`
	Actions     []Action          `json:"actions"`
	Conditions  []Condition       `json:"conditions,omitempty"`
	Settings    WorkflowSettings  `json:"settings"`
	Analytics   WorkflowAnalytics `json:"analytics"`
	// LastDispatchedAt is set once a scheduled workflow has been dispatched.
	LastDispatchedAt *time.Time `json:"lastDispatchedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.Actions = append([]Action(nil), w.Actions...)
	c.Conditions = append([]Condition(nil), w.Conditions...)
	c.Trigger.TouchpointTypes = append([]TouchpointType(nil), w.Trigger.TouchpointTypes...)
	c.Trigger.Filters = append([]Condition(nil), w.Trigger.Filters...)
	c.Trigger.ScheduledAt = cloneTime(w.Trigger.ScheduledAt)
	c.LastDispatchedAt = cloneTime(w.LastDispatchedAt)
	c.Analytics = w.Analytics.Clone()
	return &c
}
