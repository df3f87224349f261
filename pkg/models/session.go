package models

import "time"

// SessionState is the lifecycle state of the run's browser session
type SessionState string

const (
	StateUninitialized SessionState = "UNINITIALIZED"
	StateActive        SessionState = "ACTIVE"
	StateClosing       SessionState = "CLOSING"
	StateClosed        SessionState = "CLOSED"
)

// SessionInfo describes the browser session currently owned by a run
type SessionInfo struct {
	ID        string       `json:"id,omitempty"`
	Browser   string       `json:"browser"`
	State     SessionState `json:"state"`
	StartedAt time.Time    `json:"startedAt,omitempty"`
	Created   int          `json:"created"` // sessions created so far in this run
}

// ScenarioOutcome is the result of one scenario as seen by the session lifecycle
type ScenarioOutcome struct {
	Name       string `json:"name"`
	URI        string `json:"uri,omitempty"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
	Screenshot []byte `json:"-"`
}
