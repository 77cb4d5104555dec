// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"
	"time"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("trigger: %w", NewWorkflowNotFoundError("wf-1"))

	assert.True(t, stderrors.Is(err, NewWorkflowNotFoundError("other")))
	assert.False(t, stderrors.Is(err, NewLeadNotFoundError("lead-1")))
	assert.True(t, IsCode(err, ErrCodeWorkflowNotFound))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeWorkflowNotFound))
}

func TestWebhookDeliveryFailed_Retryability(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"transport failure", 0, true},
		{"server error", 503, true},
		{"client error", 404, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewWebhookDeliveryFailedError("http://hook", tt.status, stderrors.New("boom"))
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestActionExecutionFailed_InheritsRetryability(t *testing.T) {
	inner := NewNotificationSendFailedError("email", stderrors.New("throttled"))
	err := NewActionExecutionFailedError("send_email", inner)
	assert.True(t, err.Retryable)

	err = NewActionExecutionFailedError("update_field", stderrors.New("bad status"))
	assert.False(t, err.Retryable)
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewStoreOperationFailedError("save lead", stderrors.New("conn reset")))
	assert.Equal(t, "STORE_OPERATION_FAILED", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.Equal(t, "STORE_OPERATION_FAILED", bpmn.ToErrorVariables()["originalErrorCode"])

	bpmn = ConvertToBPMNError(NewLeadNotFoundError("lead-1"))
	assert.Equal(t, 0, bpmn.Retries)
	assert.False(t, bpmn.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeLeadNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnknownActionType))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidStateTransition))
	assert.Equal(t, "INFRASTRUCTURE", GetErrorCategory(ErrCodeSchedulerFailed))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeWebhookDeliveryFailed))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeActionExecutionFailed))
}

func TestNormalize(t *testing.T) {
	std := Normalize(stderrors.New("kaput"))
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.Equal(t, "kaput", std.Details)

	orig := NewTestNotFoundError("t-1")
	assert.Same(t, orig, Normalize(fmt.Errorf("wrap: %w", orig)))
}

func TestRemainingRetries(t *testing.T) {
	tests := []struct {
		name        string
		jobRetries  int32
		codeRetries int
		want        int
	}{
		{"non-retryable code throws", 3, 0, -1},
		{"exhausted job throws", 0, 3, -1},
		{"code budget caps", 5, 2, 2},
		{"job budget caps", 2, 3, 1},
		{"last attempt fails with zero", 1, 3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remainingRetries(tt.jobRetries, tt.codeRetries))
		})
	}
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, RetryBackoff(ErrCodeStoreOperationFailed))
	assert.Equal(t, 30*time.Second, RetryBackoff(ErrCodeWebhookDeliveryFailed))
	assert.Equal(t, 10*time.Second, RetryBackoff(ErrCodeInternal))
}
