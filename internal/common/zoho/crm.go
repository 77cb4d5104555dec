// internal/common/zoho/crm.go
package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apphttp "lead-automation/internal/common/http"
)

const defaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	oauthToken string
	baseURL    string
	httpClient *apphttp.Client
}

// Task is a Zoho CRM activity assigned to a sales rep.
type Task struct {
	ID          string `json:"id,omitempty"`
	Subject     string `json:"Subject"`
	Description string `json:"Description,omitempty"`
	DueDate     string `json:"Due_Date,omitempty"`
	Priority    string `json:"Priority,omitempty"`
	Status      string `json:"Status,omitempty"`
	OwnerEmail  string `json:"-"`
}

type writeResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(baseURL, oauthToken string, timeout time.Duration) *CRMClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    baseURL,
		httpClient: apphttp.NewClient(timeout),
	}
}

// CreateTask creates a task record and returns its Zoho id.
func (c *CRMClient) CreateTask(ctx context.Context, task *Task) (string, error) {
	if task.Status == "" {
		task.Status = "Not Started"
	}
	payload := map[string]interface{}{
		"data": []Task{*task},
	}
	return c.write(ctx, http.MethodPost, fmt.Sprintf("%s/Tasks", c.baseURL), payload)
}

func (c *CRMClient) write(ctx context.Context, method, url string, payload interface{}) (string, error) {
	resp, err := c.httpClient.DoJSON(ctx, method, url, map[string]string{
		"Authorization": "Zoho-oauthtoken " + c.oauthToken,
	}, payload)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var out writeResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(out.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if out.Data[0].Status != "success" {
		return "", fmt.Errorf("zoho write failed: %s", out.Data[0].Message)
	}
	return out.Data[0].Details.ID, nil
}

// StatusError is returned for non-2xx Zoho responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("zoho request failed (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
