package driver

import "fmt"

// UnknownDriverError is returned when an identifier names no registered
// provider and does not resolve to a file.
type UnknownDriverError struct {
	Identifier string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown browser driver %q", e.Identifier)
}

// DriverLoadError is returned when a custom provider resolves but cannot be
// loaded or fails to produce a session.
type DriverLoadError struct {
	Path string
	Err  error
}

func (e *DriverLoadError) Error() string {
	return fmt.Sprintf("failed to load browser driver from %s: %v", e.Path, e.Err)
}

func (e *DriverLoadError) Unwrap() error {
	return e.Err
}
