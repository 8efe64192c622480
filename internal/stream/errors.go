package stream

import (
	"errors"
	"fmt"
)

// AppendError reports a failed batch append to the sink. In streaming mode
// the batch is kept and retried on the next tick.
type AppendError struct {
	Table string
	Rows  int
	Err   error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append %d rows to table %q: %v", e.Rows, e.Table, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// IsAppendError reports whether err is or wraps an AppendError.
func IsAppendError(err error) bool {
	var ae *AppendError
	return errors.As(err, &ae)
}
