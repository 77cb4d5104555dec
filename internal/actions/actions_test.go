// internal/actions/actions_test.go
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/zoho"
)

// ==========================
// Fakes
// ==========================

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

type fakeTaskAPI struct {
	task *zoho.Task
	err  error
}

func (f *fakeTaskAPI) CreateTask(_ context.Context, t *zoho.Task) (string, error) {
	f.task = t
	if f.err != nil {
		return "", f.err
	}
	return "zoho-9", nil
}

// ==========================
// Template rendering
// ==========================

func TestRenderTemplate(t *testing.T) {
	data := map[string]interface{}{
		"firstName": "Jane",
		"score":     72,
		"company":   map[string]interface{}{"name": "Acme"},
		"tags":      []interface{}{"vip", "enterprise"},
		"phone":     nil,
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"flat key", "Hi {{firstName}}!", "Hi Jane!"},
		{"spaces inside braces", "Hi {{ firstName }}", "Hi Jane"},
		{"nested key", "Welcome from {{company.name}}", "Welcome from Acme"},
		{"number", "Score {{score}}", "Score 72"},
		{"list", "Tags: {{tags}}", "Tags: vip, enterprise"},
		{"missing key stripped", "Call {{phone}}{{unknown}}", "Call "},
		{"no placeholders", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tmpl, data))
		})
	}
}

// ==========================
// SES / SNS
// ==========================

func TestSESEmailSender(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESEmailSender(client, "noreply@example.com", logger.NewNoOpLogger())

	id, err := sender.SendEmail(context.Background(), EmailMessage{
		To:       "jane@acme.io",
		Subject:  "Hello",
		Body:     "text",
		HTMLBody: "<p>html</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	assert.Equal(t, "noreply@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"jane@acme.io"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Hello", aws.ToString(client.input.Message.Subject.Data))
	assert.Equal(t, "text", aws.ToString(client.input.Message.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(client.input.Message.Body.Html.Data))
}

func TestSESEmailSender_Failure(t *testing.T) {
	sender := NewSESEmailSender(&fakeSES{err: fmt.Errorf("throttled")}, "a@b.io", logger.NewNoOpLogger())

	_, err := sender.SendEmail(context.Background(), EmailMessage{To: "jane@acme.io"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotificationSendFailed))
	assert.True(t, errors.IsRetryable(err))
}

func TestSNSAssignmentNotifier(t *testing.T) {
	client := &fakeSNS{}
	notifier := NewSNSAssignmentNotifier(client, "arn:aws:sns:us-east-1:1:leads", logger.NewNoOpLogger())

	err := notifier.NotifyAssignment(context.Background(), Assignment{
		LeadID:    "l1",
		LeadEmail: "jane@acme.io",
		Assignee:  "rep-a",
		Score:     80,
	})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:sns:us-east-1:1:leads", aws.ToString(client.input.TopicArn))
	assert.Equal(t, "rep-a", aws.ToString(client.input.MessageAttributes["assignee"].StringValue))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.input.Message)), &body))
	assert.Equal(t, "l1", body["leadId"])
	assert.Equal(t, float64(80), body["score"])
}

// ==========================
// SMTP
// ==========================

func TestSMTPEmailSender(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	sender := NewSMTPEmailSender(SMTPConfig{
		Host:        "smtp.example.com",
		Port:        587,
		DefaultFrom: "marketing@example.com",
	}, logger.NewNoOpLogger())
	sender.now = func() time.Time { return time.Unix(0, 42) }
	sender.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	id, err := sender.SendEmail(context.Background(), EmailMessage{
		To:      "jane.doe@acme.io",
		Subject: "Welcome",
		Body:    "Hi Jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "<42.janedoe@smtp.example.com>", id)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"jane.doe@acme.io"}, gotTo)
	assert.Contains(t, gotMsg, "From: marketing@example.com\r\n")
	assert.Contains(t, gotMsg, "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nHi Jane"))
}

func TestSMTPEmailSender_InvalidRecipient(t *testing.T) {
	sender := NewSMTPEmailSender(SMTPConfig{Host: "smtp.example.com", Port: 25}, logger.NewNoOpLogger())
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	_, err := sender.SendEmail(context.Background(), EmailMessage{To: "not-an-email"})
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

// ==========================
// CRM tasks
// ==========================

func TestZohoTaskCreator(t *testing.T) {
	api := &fakeTaskAPI{}
	creator := NewZohoTaskCreator(api, logger.NewNoOpLogger())

	id, err := creator.CreateTask(context.Background(), Task{
		Title:     "Follow up",
		Priority:  "high",
		Assignee:  "rep-a",
		DueAt:     time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
		LeadID:    "l1",
		LeadEmail: "jane@acme.io",
	})
	require.NoError(t, err)
	assert.Equal(t, "zoho-9", id)
	assert.Equal(t, "High", api.task.Priority)
	assert.Equal(t, "2024-03-01", api.task.DueDate)
	assert.Contains(t, api.task.Description, "jane@acme.io")
	assert.Contains(t, api.task.Description, "rep-a")
}

func TestZohoTaskCreator_ClientErrorNotRetryable(t *testing.T) {
	api := &fakeTaskAPI{err: &zoho.StatusError{StatusCode: http.StatusBadRequest}}
	_, err := NewZohoTaskCreator(api, logger.NewNoOpLogger()).CreateTask(context.Background(), Task{Title: "x"})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCRMRequestFailed))
	assert.False(t, errors.IsRetryable(err))
}

// ==========================
// Webhooks
// ==========================

func TestHTTPWebhookDispatcher(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   bool
		retryable bool
	}{
		{"ok", http.StatusOK, false, false},
		{"accepted", http.StatusAccepted, false, false},
		{"client error", http.StatusBadRequest, true, false},
		{"server error", http.StatusServiceUnavailable, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]interface{}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "secret", r.Header.Get("X-Token"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			d := NewHTTPWebhookDispatcher(time.Second, logger.NewNoOpLogger())
			status, err := d.Dispatch(context.Background(), WebhookRequest{
				URL:     srv.URL,
				Headers: map[string]string{"X-Token": "secret"},
				Payload: map[string]interface{}{"leadId": "l1"},
			})

			assert.Equal(t, tt.status, status)
			assert.Equal(t, "l1", body["leadId"])
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeWebhookDeliveryFailed))
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestHTTPWebhookDispatcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	status, err := NewHTTPWebhookDispatcher(time.Second, logger.NewNoOpLogger()).
		Dispatch(context.Background(), WebhookRequest{URL: url})
	assert.Equal(t, 0, status)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}
