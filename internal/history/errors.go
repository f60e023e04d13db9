package history

import (
	"errors"
	"fmt"
)

// ErrUninitialized is returned when an operation is invoked in an execution
// mode (blocking or non-blocking) for which no backing connection was
// configured. The store never degrades to the other mode and never retries.
var ErrUninitialized = errors.New("history: store not initialized for requested mode")

// TransactionError reports a multi-row write that failed partway. The whole
// batch was rolled back before it surfaced; Err is the original cause.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("history: transaction rolled back: %v", e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
