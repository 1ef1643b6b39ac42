package pipeline

import (
	"errors"
	"fmt"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// StageError records which pipeline stage failed and why
type StageError struct {
	Stage model.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrStageTimeout is wrapped when a collaborator exceeds the stage timeout
var ErrStageTimeout = errors.New("stage timed out")

// FailedStage extracts the stage of a StageError, if any
func FailedStage(err error) (model.Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
