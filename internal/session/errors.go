package session

import "fmt"

// TeardownError reports a failed window close or session quit.
type TeardownError struct {
	SessionID string
	Browser   string
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown of %s session %s: %v", e.Browser, e.SessionID, e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
