// Package drivertest provides in-memory driver.Session and driver.Provider
// implementations for tests.
package drivertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

var sessionSeq atomic.Int64

// Session is a scriptable fake browser.
type Session struct {
	mu sync.Mutex

	id      string
	browser string
	caps    driver.Capabilities

	html     string
	attrs    map[string]map[string]string
	windows  []string
	cookies  map[string]string
	storage  map[string]string
	visited  []string
	calls    map[string]int
	closed   bool
	evalFunc func(expr string) (any, error)

	// Latency delays every call, ignoring cancellation, to model a remote
	// round trip that must settle.
	Latency time.Duration

	ScreenshotData []byte
	ScreenshotErr  error
	CloseErr       error
	QuitErr        error
}

// NewSession returns an open fake session with one window.
func NewSession(browser string) *Session {
	n := sessionSeq.Add(1)
	return &Session{
		id:             fmt.Sprintf("fake-%d", n),
		browser:        browser,
		caps:           driver.Capabilities{AcceptInsecureCerts: true, Maximized: true},
		attrs:          make(map[string]map[string]string),
		windows:        []string{"window-1"},
		cookies:        make(map[string]string),
		storage:        make(map[string]string),
		calls:          make(map[string]int),
		ScreenshotData: []byte("\x89PNG fake"),
	}
}

// SetCapabilities overrides the reported capabilities.
func (s *Session) SetCapabilities(caps driver.Capabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps = caps
}

// SetHTML sets the document returned by HTML.
func (s *Session) SetHTML(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
}

// SetAttribute sets an attribute on the element matching selector.
func (s *Session) SetAttribute(selector, name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs[selector] == nil {
		s.attrs[selector] = make(map[string]string)
	}
	s.attrs[selector][name] = value
}

// RemoveAttribute deletes an attribute from the element matching selector.
func (s *Session) RemoveAttribute(selector, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attrs[selector], name)
}

// SetWindows replaces the open window handles.
func (s *Session) SetWindows(handles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append([]string(nil), handles...)
}

// SetCookie stores a cookie.
func (s *Session) SetCookie(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies[name] = value
}

// SetStorageItem stores a web storage entry.
func (s *Session) SetStorageItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage[key] = value
}

// OnEvaluate installs the handler used by Evaluate.
func (s *Session) OnEvaluate(fn func(expr string) (any, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evalFunc = fn
}

// Cookies returns a copy of the stored cookies.
func (s *Session) Cookies() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.cookies)
}

// Storage returns a copy of the web storage entries.
func (s *Session) Storage() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.storage)
}

// Visited returns the navigated URLs in order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Calls reports how often the named method ran.
func (s *Session) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Session) enter(method string) error {
	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.closed {
		return driver.ErrSessionClosed
	}
	return nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) Browser() string { return s.browser }

func (s *Session) Capabilities() driver.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Closed"]++
	return s.closed
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.enter("Navigate"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visited = append(s.visited, url)
	return nil
}

func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	if err := s.enter("Evaluate"); err != nil {
		return err
	}
	s.mu.Lock()
	fn := s.evalFunc
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	v, err := fn(expr)
	if err != nil || out == nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	if err := s.enter("HTML"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html, nil
}

func (s *Session) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	if err := s.enter("Attribute"); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[selector][name]
	return v, ok, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.enter("Screenshot"); err != nil {
		return nil, err
	}
	if s.ScreenshotErr != nil {
		return nil, s.ScreenshotErr
	}
	return append([]byte(nil), s.ScreenshotData...), nil
}

func (s *Session) WindowHandles(ctx context.Context) ([]string, error) {
	if err := s.enter("WindowHandles"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.windows...), nil
}

func (s *Session) ClearCookies(ctx context.Context) error {
	if err := s.enter("ClearCookies"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = make(map[string]string)
	return nil
}

func (s *Session) ClearStorage(ctx context.Context) error {
	if err := s.enter("ClearStorage"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage = make(map[string]string)
	return nil
}

func (s *Session) CloseWindow(ctx context.Context) error {
	if err := s.enter("CloseWindow"); err != nil {
		return err
	}
	if s.CloseErr != nil {
		return s.CloseErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.windows) > 0 {
		s.windows = s.windows[1:]
	}
	if s.caps.ReleasesOnClose && len(s.windows) == 0 {
		s.closed = true
	}
	return nil
}

func (s *Session) Quit(ctx context.Context) error {
	if err := s.enter("Quit"); err != nil {
		return err
	}
	if s.QuitErr != nil {
		return s.QuitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
