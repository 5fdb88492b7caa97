package core

// Status represents the execution status of a scenario or one of its steps
type Status int

const (
	StatusPending Status = iota // Not yet started
	StatusRunning               // Currently executing
	StatusPassed                // Completed successfully
	StatusFailed                // Assertion failed (UI did not reach the expected state)
	StatusErrored               // Unexpected error (session, backend, timeout)
	StatusSkipped               // Not selected or a previous step failed
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true only for passed
func (s Status) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, text mismatch, visibility check failed
	ErrCategoryTimeout                         // Operation timed out
	ErrCategoryConnection                      // Appium server / device connection problems
	ErrCategoryApp                             // App crashed, not installed, WebView missing
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryTestData                        // Credentials file empty, provisioning failed, OTP missing
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryTestData:
		return "test_data"
	default:
		return "unknown"
	}
}

// StatusFor maps an error category to the status a failing step gets.
// Assertion problems are failures; everything else is an error in the run itself.
func StatusFor(c ErrorCategory) Status {
	switch c {
	case ErrCategoryNone:
		return StatusPassed
	case ErrCategoryAssertion:
		return StatusFailed
	default:
		return StatusErrored
	}
}
