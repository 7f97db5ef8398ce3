package pipeline

import (
	"fmt"

	"pecha-studio/internal/domain"
)

// StageError ties a failure to the pipeline stage it happened in. The run
// record keeps Message verbatim; event subscribers see the stage-prefixed
// form.
type StageError struct {
	Stage   domain.Stage
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
