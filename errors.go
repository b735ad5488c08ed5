package mscan

import (
	"fmt"
	"runtime/debug"
)

// StageError reports a failure inside a stage or dataset operation.
type StageError struct {
	Stage      string
	Cause      error
	Context    string
	StackTrace []byte
}

func (e *StageError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("stage %s failed during %s: %v", e.Stage, e.Context, e.Cause)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError wraps cause with the stage name and the step that failed.
func NewStageError(stage string, cause error, context string) *StageError {
	return &StageError{
		Stage:      stage,
		Cause:      cause,
		Context:    context,
		StackTrace: debug.Stack(),
	}
}
