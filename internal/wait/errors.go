package wait

import (
	"fmt"
	"time"
)

// WaitTimeoutError reports a wait whose condition never held.
type WaitTimeoutError struct {
	Message string
	Timeout time.Duration
	Elapsed time.Duration
	// LastErr is the most recent predicate error, if any.
	LastErr error
}

func (e *WaitTimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("%s (last error: %v)", e.Message, e.LastErr)
	}
	return e.Message
}

func (e *WaitTimeoutError) Unwrap() error {
	return e.LastErr
}
