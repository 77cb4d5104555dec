// internal/models/action.go
package models

import (
	"encoding/json"
	"fmt"
)

type ActionType string

const (
	ActionSendEmail   ActionType = "send_email"
	ActionAddTag      ActionType = "add_tag"
	ActionRemoveTag   ActionType = "remove_tag"
	ActionUpdateField ActionType = "update_field"
	ActionAssignLead  ActionType = "assign_lead"
	ActionCreateTask  ActionType = "create_task"
	ActionWebhook     ActionType = "webhook"
	ActionWait        ActionType = "wait"
	ActionSplitTest   ActionType = "split_test"
)

// ActionConfig is the per-type payload of an action. Every action type has
// its own concrete config struct.
type ActionConfig interface {
	ActionType() ActionType
}

type SendEmailConfig struct {
	TemplateID string `json:"templateId,omitempty"`
	From       string `json:"from,omitempty"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	HTMLBody   string `json:"htmlBody,omitempty"`
}

type AddTagConfig struct {
	Tag string `json:"tag"`
}

type RemoveTagConfig struct {
	Tag string `json:"tag"`
}

// UpdateFieldConfig sets a top-level lead field (score, status, jobTitle,
// ...) or, for any other name, a custom field.
type UpdateFieldConfig struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

// AssignLeadConfig assigns a fixed owner, or round-robins over Pool.
type AssignLeadConfig struct {
	Assignee string   `json:"assignee,omitempty"`
	Pool     []string `json:"pool,omitempty"`
}

type CreateTaskConfig struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Assignee    string `json:"assignee,omitempty"`
	DueInHours  int    `json:"dueInHours,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type WebhookConfig struct {
	URL         string            `json:"url"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	IncludeLead bool              `json:"includeLead,omitempty"`
}

type WaitConfig struct {
	Minutes int `json:"minutes"`
}

type SplitTestConfig struct {
	TestID string `json:"testId"`
}

// UnknownActionConfig keeps an unrecognised action so that a definition
// still loads and the execution fails when it reaches it.
type UnknownActionConfig struct {
	Type ActionType      `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

func (SendEmailConfig) ActionType() ActionType       { return ActionSendEmail }
func (AddTagConfig) ActionType() ActionType          { return ActionAddTag }
func (RemoveTagConfig) ActionType() ActionType       { return ActionRemoveTag }
func (UpdateFieldConfig) ActionType() ActionType     { return ActionUpdateField }
func (AssignLeadConfig) ActionType() ActionType      { return ActionAssignLead }
func (CreateTaskConfig) ActionType() ActionType      { return ActionCreateTask }
func (WebhookConfig) ActionType() ActionType         { return ActionWebhook }
func (WaitConfig) ActionType() ActionType            { return ActionWait }
func (SplitTestConfig) ActionType() ActionType       { return ActionSplitTest }
func (c UnknownActionConfig) ActionType() ActionType { return c.Type }

// Action is one step of a workflow.
type Action struct {
	ID     string       `json:"id"`
	Name   string       `json:"name,omitempty"`
	Active bool         `json:"active"`
	Config ActionConfig `json:"-"`
}

func (a Action) Type() ActionType {
	if a.Config == nil {
		return ""
	}
	return a.Config.ActionType()
}

type actionJSON struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	Active *bool           `json:"active,omitempty"`
	Type   ActionType      `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	active := a.Active
	out := actionJSON{ID: a.ID, Name: a.Name, Active: &active, Type: a.Type()}
	switch c := a.Config.(type) {
	case nil:
	case UnknownActionConfig:
		out.Config = c.Raw
	default:
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		out.Config = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"type": ..., "config": {...}}. A missing "active"
// flag means the action is active.
func (a *Action) UnmarshalJSON(data []byte) error {
	var in actionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	a.ID = in.ID
	a.Name = in.Name
	a.Active = in.Active == nil || *in.Active

	cfg, err := newActionConfig(in.Type)
	if err != nil {
		return err
	}
	if cfg == nil {
		a.Config = UnknownActionConfig{Type: in.Type, Raw: in.Config}
		return nil
	}
	if len(in.Config) > 0 && string(in.Config) != "null" {
		if err := json.Unmarshal(in.Config, cfg); err != nil {
			return fmt.Errorf("action %s: decode %s config: %w", in.ID, in.Type, err)
		}
	}
	a.Config = derefConfig(cfg)
	return nil
}

func newActionConfig(t ActionType) (interface{}, error) {
	switch t {
	case ActionSendEmail:
		return &SendEmailConfig{}, nil
	case ActionAddTag:
		return &AddTagConfig{}, nil
	case ActionRemoveTag:
		return &RemoveTagConfig{}, nil
	case ActionUpdateField:
		return &UpdateFieldConfig{}, nil
	case ActionAssignLead:
		return &AssignLeadConfig{}, nil
	case ActionCreateTask:
		return &CreateTaskConfig{}, nil
	case ActionWebhook:
		return &WebhookConfig{}, nil
	case ActionWait:
		return &WaitConfig{}, nil
	case ActionSplitTest:
		return &SplitTestConfig{}, nil
	case "":
		return nil, fmt.Errorf("action type is required")
	default:
		return nil, nil
	}
}

func derefConfig(v interface{}) ActionConfig {
	switch c := v.(type) {
	case *SendEmailConfig:
		return *c
	case *AddTagConfig:
		return *c
	case *RemoveTagConfig:
		return *c
	case *UpdateFieldConfig:
		return *c
	case *AssignLeadConfig:
		return *c
	case *CreateTaskConfig:
		return *c
	case *WebhookConfig:
		return *c
	case *WaitConfig:
		return *c
	case *SplitTestConfig:
		return *c
	}
	return nil
}
