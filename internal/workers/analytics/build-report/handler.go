// internal/workers/analytics/build-report/handler.go
package buildreport

import (
	"context"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
	"lead-automation/internal/tracking"
	"lead-automation/internal/workflow"
)

const (
	TaskType  = "analytics.report.build"
	ConfigKey = "build-report"
)

const (
	ReportLeads    = "leads"
	ReportWorkflow = "workflow"
	ReportABTest   = "abtest"
)

type Input struct {
	Report     string `json:"report"`
	WorkflowID string `json:"workflowId"`
	TestID     string `json:"testId"`
}

type LeadReporter interface {
	GetLeadAnalytics(ctx context.Context) (*tracking.LeadAnalytics, error)
}

type WorkflowReporter interface {
	GetWorkflowAnalytics(ctx context.Context, workflowID string) (*workflow.Report, error)
}

type TestReporter interface {
	GetResults(ctx context.Context, testID string) ([]models.ABTestResult, error)
}

type Handler struct {
	leads     LeadReporter
	workflows WorkflowReporter
	tests     TestReporter
	logger    logger.Logger
}

func NewHandler(leads LeadReporter, workflows WorkflowReporter, tests TestReporter, log logger.Logger) *Handler {
	return &Handler{
		leads:     leads,
		workflows: workflows,
		tests:     tests,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) TaskType() string { return TaskType }

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"report"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"report": {
				Type: "string",
				Enum: []string{ReportLeads, ReportWorkflow, ReportABTest},
			},
			"workflowId": {Type: "string", Description: "Required for workflow reports"},
			"testId":     {Type: "string", Description: "Restricts abtest reports to one test"},
		},
	}
}

func (h *Handler) Execute(ctx context.Context, variables map[string]interface{}) (map[string]interface{}, error) {
	var input Input
	if err := validation.DecodeInput(variables, GetInputSchema(), &input); err != nil {
		return nil, err
	}

	var (
		report interface{}
		err    error
	)
	switch input.Report {
	case ReportLeads:
		report, err = h.leads.GetLeadAnalytics(ctx)
	case ReportWorkflow:
		if input.WorkflowID == "" {
			return nil, errors.NewInvalidInputError("workflowId: required for workflow reports")
		}
		report, err = h.workflows.GetWorkflowAnalytics(ctx, input.WorkflowID)
	case ReportABTest:
		report, err = h.tests.GetResults(ctx, input.TestID)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Debug("Report built", map[string]interface{}{"report": input.Report})
	return map[string]interface{}{
		"reportType": input.Report,
		"report":     report,
	}, nil
}
