// internal/common/errors/errors.go
// Package errors provides the structured error model shared by the engine
// and the Zeebe job handlers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Validation / not-found
const (
	ErrCodeLeadNotFound           ErrorCode = "LEAD_NOT_FOUND"
	ErrCodeWorkflowNotFound       ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrCodeExecutionNotFound      ErrorCode = "EXECUTION_NOT_FOUND"
	ErrCodeTestNotFound           ErrorCode = "TEST_NOT_FOUND"
	ErrCodeSegmentNotFound        ErrorCode = "SEGMENT_NOT_FOUND"
	ErrCodeInvalidTouchpoint      ErrorCode = "INVALID_TOUCHPOINT"
	ErrCodeInvalidConversion      ErrorCode = "INVALID_CONVERSION"
	ErrCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeUnknownActionType      ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeUnsupportedVariants    ErrorCode = "UNSUPPORTED_VARIANT_COUNT"
	ErrCodeInvalidDefinition      ErrorCode = "INVALID_DEFINITION"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
)

// Technical / collaborator failures
const (
	ErrCodeActionExecutionFailed  ErrorCode = "ACTION_EXECUTION_FAILED"
	ErrCodeStoreOperationFailed   ErrorCode = "STORE_OPERATION_FAILED"
	ErrCodeSchedulerFailed        ErrorCode = "SCHEDULER_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeWebhookDeliveryFailed  ErrorCode = "WEBHOOK_DELIVERY_FAILED"
	ErrCodeCRMRequestFailed       ErrorCode = "CRM_REQUEST_FAILED"
	ErrCodeZeebeRequestFailed     ErrorCode = "ZEEBE_REQUEST_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so sentinel values
// built with the constructors below work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsCode reports whether err wraps a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// IsRetryable reports whether err wraps a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewLeadNotFoundError(leadID string) *StandardError {
	return newError(ErrCodeLeadNotFound, "Lead not found", fmt.Sprintf("leadId: %s", leadID), false)
}

func NewWorkflowNotFoundError(workflowID string) *StandardError {
	return newError(ErrCodeWorkflowNotFound, "Workflow not found", fmt.Sprintf("workflowId: %s", workflowID), false)
}

func NewExecutionNotFoundError(executionID string) *StandardError {
	return newError(ErrCodeExecutionNotFound, "Workflow execution not found", fmt.Sprintf("executionId: %s", executionID), false)
}

func NewTestNotFoundError(testID string) *StandardError {
	return newError(ErrCodeTestNotFound, "A/B test not found", fmt.Sprintf("testId: %s", testID), false)
}

func NewSegmentNotFoundError(segmentID string) *StandardError {
	return newError(ErrCodeSegmentNotFound, "Segment not found", fmt.Sprintf("segmentId: %s", segmentID), false)
}

func NewInvalidTouchpointError(details string) *StandardError {
	return newError(ErrCodeInvalidTouchpoint, "Touchpoint rejected", details, false)
}

func NewInvalidConversionError(details string) *StandardError {
	return newError(ErrCodeInvalidConversion, "Conversion rejected", details, false)
}

// NewInvalidStateTransitionError is returned by pause/resume/cancel when the
// execution is not in a state the transition is legal from.
func NewInvalidStateTransitionError(executionID, from, to string) *StandardError {
	return newError(ErrCodeInvalidStateTransition, "Illegal execution state transition",
		fmt.Sprintf("executionId: %s, from: %s, to: %s", executionID, from, to), false)
}

func NewUnknownActionTypeError(actionType string) *StandardError {
	return newError(ErrCodeUnknownActionType, "Unknown workflow action type", fmt.Sprintf("type: %s", actionType), false)
}

func NewUnsupportedVariantCountError(count int) *StandardError {
	return newError(ErrCodeUnsupportedVariants, "Significance test requires exactly two variants",
		fmt.Sprintf("variants: %d", count), false)
}

func NewInvalidDefinitionError(details string) *StandardError {
	return newError(ErrCodeInvalidDefinition, "Definition failed validation", details, false)
}

// NewInvalidInputError rejects job variables that fail schema validation.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Job input validation failed", details, false)
}

func NewActionExecutionFailedError(actionType string, err error) *StandardError {
	return newError(ErrCodeActionExecutionFailed, "Workflow action failed",
		fmt.Sprintf("type: %s, error: %s", actionType, err.Error()), IsRetryable(err))
}

func NewStoreOperationFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeStoreOperationFailed, "Store operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewSchedulerFailedError(err error) *StandardError {
	return newError(ErrCodeSchedulerFailed, "Continuation scheduling failed", err.Error(), true)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true)
}

// NewWebhookDeliveryFailedError marks 5xx and transport failures retryable;
// 4xx responses are not.
func NewWebhookDeliveryFailedError(url string, status int, err error) *StandardError {
	details := fmt.Sprintf("url: %s, status: %d", url, status)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return newError(ErrCodeWebhookDeliveryFailed, "Webhook delivery failed", details, status == 0 || status >= 500)
}

func NewCRMRequestFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeCRMRequestFailed, "CRM request failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewZeebeRequestFailedError(operation string, err error, retryable bool) *StandardError {
	return newError(ErrCodeZeebeRequestFailed, "Zeebe request failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), retryable)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended Zeebe job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreOperationFailed,
		ErrCodeSchedulerFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeCRMRequestFailed,
		ErrCodeZeebeRequestFailed:
		return 3

	case ErrCodeWebhookDeliveryFailed,
		ErrCodeActionExecutionFailed:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasSuffix(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.HasPrefix(codeStr, "INVALID") || strings.HasPrefix(codeStr, "UNKNOWN") || strings.HasPrefix(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "SCHEDULER"):
		return "INFRASTRUCTURE"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "WEBHOOK") || strings.Contains(codeStr, "CRM") || strings.Contains(codeStr, "ZEEBE"):
		return "INTEGRATION"
	case strings.Contains(codeStr, "ACTION"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
