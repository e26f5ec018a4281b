package pipeline

import (
	"fmt"

	"github.com/vaultpilot/automations/pkg/models"
)

// ActionError reports which action in the sequence failed. It never escapes
// Execute as an error return; the pipeline folds it into the failed result.
type ActionError struct {
	Index  int
	Action models.Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s) failed: %v", e.Index+1, e.Action.Describe(), e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
