package dispatcher

import (
	"errors"
	"fmt"
)

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrNoDueItem      = errors.New("no due item for user")
)

// ModuleQueryError wraps a failed due-item query of one module
type ModuleQueryError struct {
	ModuleID string
	Err      error
}

func (e *ModuleQueryError) Error() string {
	return fmt.Sprintf("module %s query failed: %v", e.ModuleID, e.Err)
}

func (e *ModuleQueryError) Unwrap() error { return e.Err }
