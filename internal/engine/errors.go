package engine

import (
	"errors"
	"fmt"
)

// EvalError reports a failed column evaluation. It aborts the row; batch
// mode then fails the table, streaming mode fails the current tick.
type EvalError struct {
	Table  string
	Column string
	RowID  int64
	Err    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("table %q column %q row %d: %v", e.Table, e.Column, e.RowID, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

// IsEvalError reports whether err is or wraps an EvalError.
func IsEvalError(err error) bool {
	var ee *EvalError
	return errors.As(err, &ee)
}

// MissingParentRowError reports a foreign-key resolution against a parent
// table that has no usable rows. This is never silently mapped to NULL or
// zero; a dangling reference must fail loudly.
type MissingParentRowError struct {
	Table  string // child table
	Column string // child column being resolved
	Parent string // parent table with no rows
	Key    any    // specific parent key looked up, nil for empty-cache errors
}

func (e *MissingParentRowError) Error() string {
	if e.Key != nil {
		return fmt.Sprintf("table %q column %q: no row in parent table %q for key %v",
			e.Table, e.Column, e.Parent, e.Key)
	}
	return fmt.Sprintf("table %q column %q: parent table %q has no rows to reference",
		e.Table, e.Column, e.Parent)
}

// IsMissingParentRow reports whether err is or wraps a MissingParentRowError.
func IsMissingParentRow(err error) bool {
	var me *MissingParentRowError
	return errors.As(err, &me)
}
