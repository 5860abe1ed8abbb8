package core

import (
	"errors"
	"fmt"
)

// Error is a coded error used across package boundaries so callers and
// consumers can branch on Code without matching message text.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new coded Error.
func NewError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Errorf creates a coded Error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Error codes
const (
	ErrCodeUnknownCommand      = "UNKNOWN_COMMAND"
	ErrCodeMissingIntegration  = "MISSING_INTEGRATION"
	ErrCodeInvalidArguments    = "INVALID_ARGUMENTS"
	ErrCodeBackendFailed       = "BACKEND_FAILED"
	ErrCodeStreamAborted       = "STREAM_ABORTED"
	ErrCodeInvalidInterval     = "INVALID_INTERVAL"
	ErrCodeInvalidEndCondition = "INVALID_END_CONDITION"
	ErrCodeNoPermittedWeekday  = "NO_PERMITTED_WEEKDAY"
	ErrCodeInvalidSchedule     = "INVALID_SCHEDULE"
	ErrCodeInvalidPrompt       = "INVALID_PROMPT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeWebhookDisabled     = "WEBHOOK_DISABLED"
	ErrCodeHandlerPanic        = "HANDLER_PANIC"
)

// ErrStreamClosed is returned when publishing to a terminated Stream.
var ErrStreamClosed = errors.New("stream closed")
