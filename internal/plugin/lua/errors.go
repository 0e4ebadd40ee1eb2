package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua: state is closed")

	// ErrExecutionTimeout is returned when execution times out.
	ErrExecutionTimeout = errors.New("lua: execution timeout")

	// ErrNotATable is returned when a plugin script does not return a table.
	ErrNotATable = errors.New("lua: plugin script must return a table")

	// ErrInvalidHandler is returned when a plugin table entry is not a
	// string key mapped to a function.
	ErrInvalidHandler = errors.New("lua: invalid handler entry")
)

// CallError is the panic value raised when a Lua handler fails.
type CallError struct {
	Script string
	Tag    string
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("lua: %s: handler %q: %v", e.Script, e.Tag, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
