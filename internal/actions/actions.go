// internal/actions/actions.go
// Package actions holds the outbound collaborators a workflow action talks
// to: email delivery, CRM tasks, webhooks and assignment notifications.
package actions

import (
	"context"
	"time"
)

// EmailMessage is one rendered email addressed to a lead.
type EmailMessage struct {
	To         string
	From       string
	Subject    string
	Body       string
	HTMLBody   string
	TemplateID string
	LeadID     string
}

// EmailSender delivers an email and returns the provider message id.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) (string, error)
}

// Task is a follow-up task for a sales rep.
type Task struct {
	Title       string
	Description string
	Assignee    string
	Priority    string
	DueAt       time.Time
	LeadID      string
	LeadEmail   string
}

// TaskCreator creates a task in the system of record and returns its id.
type TaskCreator interface {
	CreateTask(ctx context.Context, task Task) (string, error)
}

// WebhookRequest is an outbound HTTP call made by a webhook action.
type WebhookRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Payload map[string]interface{}
}

// WebhookDispatcher delivers a webhook and returns the response status code.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, req WebhookRequest) (int, error)
}

// Assignment describes a lead handed to a rep.
type Assignment struct {
	LeadID     string    `json:"leadId"`
	LeadEmail  string    `json:"leadEmail"`
	Assignee   string    `json:"assignee"`
	Score      int       `json:"score"`
	WorkflowID string    `json:"workflowId,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
}

// AssignmentNotifier tells the assignee about a new lead.
type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, a Assignment) error
}
