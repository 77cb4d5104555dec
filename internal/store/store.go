// internal/store/store.go
// Package store defines the repositories the engine persists through.
// Implementations return *errors.StandardError not-found codes for missing
// records and never hand out references to their internal state.
package store

import (
	"context"
	"time"

	"lead-automation/internal/models"
)

type LeadStore interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (*models.Lead, error)
	UpdateLead(ctx context.Context, lead *models.Lead) error
	ListLeads(ctx context.Context) ([]*models.Lead, error)
}

type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*models.Workflow, error)
	// UpdateAnalytics applies fn to the stored analytics atomically.
	UpdateAnalytics(ctx context.Context, id string, fn func(*models.WorkflowAnalytics)) error
	// MarkDispatched records the dispatch time of a scheduled workflow. It
	// reports false when the workflow was already dispatched.
	MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error)
}

// ExecutionFilter selects executions; empty fields match anything.
type ExecutionFilter struct {
	WorkflowID string
	LeadID     string
	Status     models.ExecutionStatus
}

type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec *models.WorkflowExecution) error
	GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error)
	UpdateExecution(ctx context.Context, exec *models.WorkflowExecution) error
	// ListExecutions returns matches ordered by start time, oldest first.
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*models.WorkflowExecution, error)
}

type ConversionStore interface {
	SaveConversion(ctx context.Context, conv *models.ConversionEvent) error
	// ListConversions returns a lead's conversions, or all when leadID is empty.
	ListConversions(ctx context.Context, leadID string) ([]*models.ConversionEvent, error)
}

type ABTestStore interface {
	SaveTest(ctx context.Context, test *models.ABTest) error
	GetTest(ctx context.Context, id string) (*models.ABTest, error)
	ListTests(ctx context.Context) ([]*models.ABTest, error)
	// UpdateTest applies fn to the stored test atomically; an error from fn
	// aborts the update.
	UpdateTest(ctx context.Context, id string, fn func(*models.ABTest) error) error
}

type SegmentStore interface {
	SaveSegment(ctx context.Context, seg *models.Segment) error
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	ListSegments(ctx context.Context) ([]*models.Segment, error)
}

// Store bundles every repository.
type Store interface {
	LeadStore
	WorkflowStore
	ExecutionStore
	ConversionStore
	ABTestStore
	SegmentStore
}
