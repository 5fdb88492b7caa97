package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, text_mismatch, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context (locator, expected, actual)
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	msg := e.Message
	if loc, ok := e.Details["locator"]; ok {
		msg = fmt.Sprintf("%s (%v)", msg, loc)
	}
	if exp, ok := e.Details["expected"]; ok {
		msg = fmt.Sprintf("%s: expected %q, got %q", msg, exp, e.Details["actual"])
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches predefined errors by code, so errors.Is(err, ErrElementNotFound)
// holds for copies produced by WithCause/WithDetails.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Category == t.Category
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	c := e.clone()
	merged := make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c.Details = merged
	return c
}

func (e *ExecutionError) clone() *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrElementNotVisible = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_visible",
		Message:  "element not visible",
	}
	ErrElementNotEnabled = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_enabled",
		Message:  "element not enabled",
	}
	ErrTextMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "text_mismatch",
		Message:  "text does not match expected value",
	}

	// Timeout errors
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Connection errors
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not start Appium session",
	}

	// App errors
	ErrNoWebView = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "no_webview",
		Message:  "no WebView context found",
	}
	ErrAppNotRemoved = &ExecutionError{
		Category: ErrCategoryApp,
		Code:     "app_not_removed",
		Message:  "application could not be removed from device",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrUnknownOption = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "unknown_option",
		Message:  "unknown option",
	}

	// Test data errors
	ErrNoTestUser = &ExecutionError{
		Category: ErrCategoryTestData,
		Code:     "no_test_user",
		Message:  "no test user available",
	}
	ErrOTPNotReceived = &ExecutionError{
		Category: ErrCategoryTestData,
		Code:     "otp_not_received",
		Message:  "one-time password was not received",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf extracts the category of err, treating unknown errors as connection-level.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryNone
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryConnection
}
