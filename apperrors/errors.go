// Package apperrors provides structured pipeline errors classified via errors.Is.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrDuplicateStage   = errors.New("duplicate stage")
	ErrCyclicDependency = errors.New("cyclic dependency")
	ErrUnknownStage     = errors.New("unknown stage")
	ErrStageExecution   = errors.New("stage execution failed")
	ErrInvalidStage     = errors.New("invalid stage")
	ErrInternal         = errors.New("internal error")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Stage    string // Stage the error belongs to, if any
	Op       string // Operation that failed (e.g., "docker.createContainer")
	ExitCode int    // Command exit status for execution errors
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// DuplicateStage creates an error for a stage name that already exists.
func DuplicateStage(name string) error {
	return &Error{
		Sentinel: ErrDuplicateStage,
		Message:  fmt.Sprintf("stage %s already exists", name),
		Stage:    name,
	}
}

// CyclicDependency creates an error for a parent edge that would close a cycle.
// The path lists the ancestor chain that loops back to the stage.
func CyclicDependency(name string, path []string) error {
	msg := fmt.Sprintf("stage %s would create a cycle", name)
	if len(path) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(path, " -> "))
	}
	return &Error{
		Sentinel: ErrCyclicDependency,
		Message:  msg,
		Stage:    name,
	}
}

// UnknownStage creates an error for a stage name not present in the graph.
func UnknownStage(name string) error {
	return &Error{
		Sentinel: ErrUnknownStage,
		Message:  fmt.Sprintf("stage %s not found", name),
		Stage:    name,
	}
}

// StageExecution creates an error for a stage whose commands failed.
func StageExecution(stage string, exitCode int, cause error) error {
	msg := fmt.Sprintf("stage %s failed with exit code %d", stage, exitCode)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &Error{
		Sentinel: ErrStageExecution,
		Message:  msg,
		Stage:    stage,
		ExitCode: exitCode,
		Cause:    cause,
	}
}

// InvalidStage creates a validation error for a stage definition.
func InvalidStage(stage, reason string) error {
	return &Error{
		Sentinel: ErrInvalidStage,
		Message:  reason,
		Stage:    stage,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
