// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports a failed job back to the broker: retryable failures
// go back with a reduced retry count and a backoff, everything else is
// thrown as a BPMN error for the process to catch.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	retries := remainingRetries(job.Retries, bpmnErr.Retries)

	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":             job.Key,
		"jobType":            job.Type,
		"processInstanceKey": job.ProcessInstanceKey,
		"errorCode":          string(stdErr.Code),
		"errorCategory":      GetErrorCategory(stdErr.Code),
		"details":            stdErr.Details,
		"retryable":          stdErr.Retryable,
		"retriesLeft":        retries,
	})

	vars := errorVariables(bpmnErr)
	if retries >= 0 {
		cmd := client.NewFailJobCommand().
			JobKey(job.Key).
			Retries(int32(retries)).
			RetryBackoff(RetryBackoff(stdErr.Code)).
			ErrorMessage(bpmnErr.Message)
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, _ = withVars.Send(ctx)
			return
		}
		_, _ = cmd.Send(ctx)
		return
	}

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)
	if withVars, err := cmd.VariablesFromString(vars); err == nil {
		_, _ = withVars.Send(ctx)
		return
	}
	_, _ = cmd.Send(ctx)
}

// remainingRetries is the retry count to fail the job with, or -1 when the
// error should be thrown instead. The job's own budget is never raised.
func remainingRetries(jobRetries int32, codeRetries int) int {
	if codeRetries <= 0 || jobRetries <= 0 {
		return -1
	}
	left := int(jobRetries) - 1
	if left > codeRetries {
		left = codeRetries
	}
	return left
}

// RetryBackoff is how long the broker waits before handing a failed job
// out again.
func RetryBackoff(code ErrorCode) time.Duration {
	switch code {
	case ErrCodeStoreOperationFailed, ErrCodeSchedulerFailed, ErrCodeZeebeRequestFailed:
		return 5 * time.Second
	case ErrCodeNotificationSendFailed, ErrCodeWebhookDeliveryFailed, ErrCodeCRMRequestFailed, ErrCodeActionExecutionFailed:
		return 30 * time.Second
	default:
		return 10 * time.Second
	}
}

func errorVariables(bpmnErr *BPMNError) string {
	data, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Normalize returns err as a StandardError, wrapping unknown errors as
// non-retryable INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
