package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, namespaced identifier for a class of failure.
// Codes are matched with errors.Is rather than string comparison on
// messages.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	CONFIG_NOT_FOUND         ErrorCode = "CONFIG_NOT_FOUND"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
	DB_CONNECTION_LOST  ErrorCode = "DB_CONNECTION_LOST"
)

// LoopError carries a code, a human-readable message, a retryability
// hint, and an optional wrapped cause. Every failure in the memory
// substrate surfaces as a LoopError; there is no process-wide
// last-error state.
type LoopError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error renders "[CODE] message", appending the cause when present.
func (e *LoopError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is and errors.As chains.
func (e *LoopError) Unwrap() error {
	return e.Cause
}

// Is matches two LoopErrors by code, ignoring message and cause.
func (e *LoopError) Is(target error) bool {
	var loopErr *LoopError
	if errors.As(target, &loopErr) {
		return e.Code == loopErr.Code
	}
	return false
}

// NewError returns a non-retryable LoopError.
func NewError(code ErrorCode, message string) *LoopError {
	return &LoopError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError returns a LoopError marked retryable, for transient
// failures such as a busy database.
func NewRetryableError(code ErrorCode, message string) *LoopError {
	return &LoopError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError returns a non-retryable LoopError wrapping cause.
func WrapError(code ErrorCode, message string, cause error) *LoopError {
	return &LoopError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCodeOf extracts the code of the first LoopError in the chain, or
// the empty string when there is none.
func ErrorCodeOf(err error) ErrorCode {
	var loopErr *LoopError
	if errors.As(err, &loopErr) {
		return loopErr.Code
	}
	return ""
}

// IsRetryable reports whether the first LoopError in the chain is
// marked retryable.
func IsRetryable(err error) bool {
	var loopErr *LoopError
	if errors.As(err, &loopErr) {
		return loopErr.Retryable
	}
	return false
}
