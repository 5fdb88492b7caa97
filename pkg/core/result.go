// Package core provides the execution model types shared by screens, the executor and reports.
package core

import (
	"time"
)

// StepResult captures the outcome of one named scenario step (a MainScreen action).
type StepResult struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Error string `json:"error,omitempty"`
}

// ScenarioResult captures the complete outcome of executing a scenario on one device
type ScenarioResult struct {
	// Identity
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Suite   string   `json:"suite"`
	Cases   []string `json:"cases,omitempty"` // TestRail case ids
	Marks   []string `json:"marks,omitempty"`
	Device  string   `json:"device"`
	Params  string   `json:"params,omitempty"`

	Status   Status        `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps       []StepResult `json:"steps"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Error info (if scenario failed)
	Error string `json:"error,omitempty"`

	// UserReleased is true when the consumed credential record was removed after a pass.
	UserReleased bool `json:"userReleased,omitempty"`
}

// AggregateStatus determines the scenario status from its steps.
// Any failed step fails the scenario; an errored step without failures errors it.
func (r *ScenarioResult) AggregateStatus() Status {
	status := StatusPassed
	for _, step := range r.Steps {
		switch step.Status {
		case StatusFailed:
			return StatusFailed
		case StatusErrored:
			status = StatusErrored
		}
	}
	return status
}

// SuiteResult captures the outcome of a whole run
type SuiteResult struct {
	RunID     string        `json:"runId"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Scenarios []ScenarioResult `json:"scenarios"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ComputeSummary calculates scenario counts
func (s *SuiteResult) ComputeSummary() {
	s.Total = len(s.Scenarios)
	s.Passed, s.Failed, s.Skipped = 0, 0, 0

	for _, sc := range s.Scenarios {
		switch sc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed, StatusErrored:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
}

// Success returns true if all scenarios passed (skipped ones don't count against)
func (s *SuiteResult) Success() bool {
	ran := 0
	for _, sc := range s.Scenarios {
		if sc.Status == StatusSkipped {
			continue
		}
		if !sc.Status.IsSuccess() {
			return false
		}
		ran++
	}
	return ran > 0
}
