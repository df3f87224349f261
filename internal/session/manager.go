// Package session owns the run's single browser session and its lifecycle:
// creation on demand, reuse across scenarios, per-scenario hygiene and
// teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

// Creator opens browser sessions by identifier. *driver.Factory implements it.
type Creator interface {
	CreateSession(ctx context.Context, identifier string) (driver.Session, error)
}

// Recorder observes lifecycle events.
type Recorder interface {
	SessionCreated(browser string)
	SessionClosed(browser string, failed bool)
	ScreenshotTaken(browser string)
	HygieneRun(browser string, failed bool)
}

// Config holds the run-wide lifecycle settings.
type Config struct {
	Browser     string
	Policy      Policy
	Screenshots bool
}

// Manager handles all session lifecycle operations
type Manager struct {
	creator  Creator
	cfg      Config
	logger   *zap.Logger
	recorder Recorder

	mu        sync.Mutex
	state     models.SessionState
	current   driver.Session
	startedAt time.Time
	created   int
	task      *Task
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder reports lifecycle events to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// NewManager creates a new session manager
func NewManager(creator Creator, cfg Config, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyClear
	}
	m := &Manager{
		creator:  creator,
		cfg:      cfg,
		logger:   logger.Named("session"),
		recorder: nopRecorder{},
		state:    models.StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the teardown policy.
func (m *Manager) Policy() Policy { return m.cfg.Policy }

// State returns the current lifecycle state.
func (m *Manager) State() models.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active session, or nil.
func (m *Manager) Current() driver.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Info describes the session for reports and the viewer.
func (m *Manager) Info() models.SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := models.SessionInfo{
		Browser: m.cfg.Browser,
		State:   m.state,
		Created: m.created,
	}
	if m.current != nil {
		info.ID = m.current.ID()
		info.StartedAt = m.startedAt
	}
	return info
}

// Acquire returns the live session, creating one when none exists. Under
// PolicyAlways the session is checked on every call and replaced when the
// scenarios closed it. A teardown still in flight is awaited first.
func (m *Manager) Acquire(ctx context.Context) (driver.Session, error) {
	m.mu.Lock()
	for m.state == models.StateClosing {
		task := m.task
		m.mu.Unlock()
		if err := task.Wait(ctx); err != nil && ctx.Err() != nil {
			return nil, err
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	if m.current != nil {
		if m.cfg.Policy != PolicyAlways || !m.current.Closed() {
			return m.current, nil
		}
		m.logger.Info("session closed by scenario, replacing",
			zap.String("session_id", m.current.ID()))
		m.recorder.SessionClosed(m.current.Browser(), false)
		m.current = nil
		m.state = models.StateClosed
	}

	s, err := m.creator.CreateSession(ctx, m.cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s session: %w", m.cfg.Browser, err)
	}

	m.current = s
	m.state = models.StateActive
	m.startedAt = time.Now()
	m.created++
	m.recorder.SessionCreated(s.Browser())
	m.logger.Info("session started",
		zap.String("session_id", s.ID()),
		zap.String("browser", s.Browser()),
		zap.String("policy", string(m.cfg.Policy)))
	return s, nil
}

// Complete finishes a scenario on the active session: a failed scenario gets
// a screenshot attached to out, then cookies and storage are cleared. Unless
// the policy is PolicyAlways, a failed scenario's session is then destroyed so
// the next Acquire starts a fresh one. Problems are logged and never returned.
func (m *Manager) Complete(ctx context.Context, out *models.ScenarioOutcome) {
	m.mu.Lock()
	s := m.current
	active := m.state == models.StateActive
	m.mu.Unlock()
	if s == nil || !active {
		return
	}

	logger := m.logger.With(zap.String("session_id", s.ID()))
	failed := out != nil && out.Failed
	if out != nil {
		logger = logger.With(zap.String("scenario", out.Name))
	}

	if failed && m.cfg.Screenshots {
		png, err := s.Screenshot(ctx)
		if err != nil {
			logger.Warn("failure screenshot not captured", zap.Error(err))
		} else {
			out.Screenshot = png
			m.recorder.ScreenshotTaken(s.Browser())
		}
	}

	m.hygiene(ctx, s, logger)

	if failed && m.cfg.Policy.DestroysAtEnd() {
		if err := m.Teardown(ctx).Wait(ctx); err != nil {
			logger.Warn("session teardown after failed scenario failed", zap.Error(err))
		}
	}
}

func (m *Manager) hygiene(ctx context.Context, s driver.Session, logger *zap.Logger) {
	if err := ClearState(ctx, s); err != nil {
		if errors.Is(err, driver.ErrSessionClosed) {
			logger.Debug("session already closed, hygiene skipped")
			return
		}
		logger.Warn("clearing cookies and storage failed", zap.Error(err))
		m.recorder.HygieneRun(s.Browser(), true)
		return
	}
	m.recorder.HygieneRun(s.Browser(), false)
}

// ClearState removes cookies and web storage. Repeating it is harmless.
func ClearState(ctx context.Context, s driver.Session) error {
	return errors.Join(s.ClearCookies(ctx), s.ClearStorage(ctx))
}

// Teardown destroys the active session asynchronously. A teardown already
// running is returned as is; with nothing to destroy, or under PolicyAlways,
// the returned task is already finished.
func (m *Manager) Teardown(ctx context.Context) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == models.StateClosing {
		return m.task
	}
	if m.cfg.Policy == PolicyAlways || m.current == nil || m.state != models.StateActive {
		return finishedTask(nil)
	}

	s := m.current
	task := newTask(ctx)
	m.task = task
	m.state = models.StateClosing
	m.logger.Info("tearing down session", zap.String("session_id", s.ID()))

	go func() {
		err := m.destroy(task.ctx, s)

		m.mu.Lock()
		m.current = nil
		m.state = models.StateClosed
		m.mu.Unlock()

		m.recorder.SessionClosed(s.Browser(), err != nil)
		task.finish(err)
	}()
	return task
}

func (m *Manager) destroy(ctx context.Context, s driver.Session) error {
	var errs []error
	if err := s.CloseWindow(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close window: %w", err))
	}
	// Some browsers free the whole process when their last window closes.
	if !s.Capabilities().ReleasesOnClose {
		if err := s.Quit(ctx); err != nil {
			errs = append(errs, fmt.Errorf("quit: %w", err))
		}
	}
	if len(errs) > 0 {
		return &TeardownError{SessionID: s.ID(), Browser: s.Browser(), Err: errors.Join(errs...)}
	}
	m.logger.Info("session closed", zap.String("session_id", s.ID()))
	return nil
}

type nopRecorder struct{}

func (nopRecorder) SessionCreated(string)      {}
func (nopRecorder) SessionClosed(string, bool) {}
func (nopRecorder) ScreenshotTaken(string)     {}
func (nopRecorder) HygieneRun(string, bool)    {}
