package driver

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by operations on a session that has quit.
var ErrSessionClosed = errors.New("browser session closed")

// Capabilities describes the standing defaults a provider applied to a session.
type Capabilities struct {
	AcceptInsecureCerts bool `json:"acceptInsecureCerts"`
	Maximized           bool `json:"maximized"`
	Headless            bool `json:"headless"`
	// ReleasesOnClose is set when closing the last window already frees the
	// browser process, so teardown must not quit afterwards.
	ReleasesOnClose bool `json:"releasesOnClose"`
}

// Session is one live browser-control connection.
type Session interface {
	ID() string
	Browser() string
	Capabilities() Capabilities

	Navigate(ctx context.Context, url string) error
	// Evaluate runs a JavaScript expression in the active window and decodes
	// its JSON result into out. out may be nil.
	Evaluate(ctx context.Context, expr string, out any) error
	// HTML returns the outer HTML of the active document.
	HTML(ctx context.Context) (string, error)
	// Attribute reports the value of attribute name on the first element
	// matching selector. present is false when either is missing.
	Attribute(ctx context.Context, selector, name string) (value string, present bool, err error)
	Screenshot(ctx context.Context) ([]byte, error)
	// WindowHandles lists the open top-level browsing contexts.
	WindowHandles(ctx context.Context) ([]string, error)

	ClearCookies(ctx context.Context) error
	ClearStorage(ctx context.Context) error

	CloseWindow(ctx context.Context) error
	Quit(ctx context.Context) error
	Closed() bool
}
