package operations

import (
	"errors"
	"fmt"
)

// Queue-level errors returned by Enqueue.
var (
	ErrAlreadyProcessing = errors.New("file is already being processed")
	ErrQueueFull         = errors.New("processing queue is full")
	ErrQueueClosed       = errors.New("processing queue is shut down")
)

// StepError records which step of a run failed and why.
type StepError struct {
	Step    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e == nil {
		return "unknown processing error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Step, e.Message)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewStepError creates a step error with a cause
func NewStepError(step, message string, cause error) *StepError {
	return &StepError{Step: step, Message: message, Cause: cause}
}
