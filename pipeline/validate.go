package pipeline

import (
	"fmt"
	"regexp"

	"buildpipe/apperrors"
)

// Validation limits
const (
	maxStageNameLength = 128
	maxCommands        = 256
	maxCommandLength   = 8192
	maxInputs          = 256
	maxOutputs         = 256
)

// stageNamePattern allows alphanumeric, hyphens, underscores, and dots
var stageNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate checks a stage definition. Does not modify the stage.
func (s Stage) Validate() error {
	if s.Name == "" {
		return apperrors.InvalidStage("", "stage name is required")
	}
	if len(s.Name) > maxStageNameLength {
		return apperrors.InvalidStage(s.Name, fmt.Sprintf("stage name exceeds %d characters", maxStageNameLength))
	}
	if !stageNamePattern.MatchString(s.Name) {
		return apperrors.InvalidStage(s.Name, "stage name must start with an alphanumeric character and contain only alphanumerics, hyphens, underscores, and dots")
	}
	if s.From != "" && !stageNamePattern.MatchString(s.From) {
		return apperrors.InvalidStage(s.Name, fmt.Sprintf("invalid parent stage name %q", s.From))
	}

	if len(s.Run) == 0 {
		return apperrors.InvalidStage(s.Name, "stage requires at least one command")
	}
	if len(s.Run) > maxCommands {
		return apperrors.InvalidStage(s.Name, fmt.Sprintf("stage exceeds %d commands", maxCommands))
	}
	for i, cmd := range s.Run {
		if cmd == "" {
			return apperrors.InvalidStage(s.Name, fmt.Sprintf("command %d is empty", i))
		}
		if len(cmd) > maxCommandLength {
			return apperrors.InvalidStage(s.Name, fmt.Sprintf("command %d exceeds %d characters", i, maxCommandLength))
		}
	}

	if len(s.Inputs) > maxInputs {
		return apperrors.InvalidStage(s.Name, fmt.Sprintf("stage exceeds %d inputs", maxInputs))
	}
	for i, in := range s.Inputs {
		if in == "" {
			return apperrors.InvalidStage(s.Name, fmt.Sprintf("input %d is empty", i))
		}
	}

	if len(s.Outputs) > maxOutputs {
		return apperrors.InvalidStage(s.Name, fmt.Sprintf("stage exceeds %d outputs", maxOutputs))
	}
	for i, out := range s.Outputs {
		if out == "" {
			return apperrors.InvalidStage(s.Name, fmt.Sprintf("output %d is empty", i))
		}
	}

	return nil
}
