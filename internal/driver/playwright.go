package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

type playwrightProvider struct {
	name            string
	engine          string
	execPath        string
	releasesOnClose bool
	logger          *zap.Logger
}

func (p *playwrightProvider) Name() string { return p.name }

func (p *playwrightProvider) Settings() Settings {
	return Settings{
		Capabilities: Capabilities{
			AcceptInsecureCerts: true,
			Maximized:           true,
			ReleasesOnClose:     p.releasesOnClose,
		},
		ExecPath:     p.execPath,
		WindowWidth:  defaultWindowWidth,
		WindowHeight: defaultWindowHeight,
	}
}

func (p *playwrightProvider) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	settings := p.Settings()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(false),
	}
	switch p.engine {
	case Firefox:
		browserType = pw.Firefox
		launch.Args = []string{
			"-width", fmt.Sprint(settings.WindowWidth),
			"-height", fmt.Sprint(settings.WindowHeight),
		}
	case WebKit:
		browserType = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unsupported playwright engine %q", p.engine)
	}
	if settings.ExecPath != "" {
		launch.ExecutablePath = playwright.String(settings.ExecPath)
	}

	browser, err := browserType.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", p.engine, err)
	}

	// NoViewport lets the page follow the window size instead of a fixed
	// emulated viewport.
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(settings.AcceptInsecureCerts),
		NoViewport:        playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	id := uuid.New().String()
	return &pwSession{
		id:      id,
		name:    p.name,
		caps:    settings.Capabilities,
		pw:      pw,
		browser: browser,
		bctx:    bctx,
		page:    page,
		logger:  p.logger.With(zap.String("browser", p.name), zap.String("session_id", id)),
	}, nil
}

// pwSession drives Firefox or WebKit through playwright.
type pwSession struct {
	id      string
	name    string
	caps    Capabilities
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page
	logger  *zap.Logger

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

func (s *pwSession) ID() string                 { return s.id }
func (s *pwSession) Browser() string            { return s.name }
func (s *pwSession) Capabilities() Capabilities { return s.caps }
func (s *pwSession) Closed() bool               { return s.closed.Load() }

func (s *pwSession) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return ctx.Err()
}

func (s *pwSession) Navigate(ctx context.Context, url string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	_, err := s.page.Goto(url)
	return err
}

func (s *pwSession) Evaluate(ctx context.Context, expr string, out any) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	v, err := s.page.Evaluate(expr)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (s *pwSession) HTML(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}
	return s.page.Content()
}

func (s *pwSession) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var res AttributeResult
	if err := s.Evaluate(ctx, AttributeScript(selector, name), &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

func (s *pwSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return s.page.Screenshot()
}

func (s *pwSession) WindowHandles(ctx context.Context) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	pages := s.bctx.Pages()
	handles := make([]string, 0, len(pages))
	for i := range pages {
		handles = append(handles, fmt.Sprintf("%s-page-%d", s.id[:8], i))
	}
	return handles, nil
}

func (s *pwSession) ClearCookies(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.bctx.ClearCookies()
}

func (s *pwSession) ClearStorage(ctx context.Context) error {
	return s.Evaluate(ctx, clearStorageScript, nil)
}

func (s *pwSession) CloseWindow(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := s.page.Close(); err != nil {
		return err
	}
	if s.caps.ReleasesOnClose && len(s.bctx.Pages()) == 0 {
		return s.shutdown()
	}
	return nil
}

func (s *pwSession) Quit(ctx context.Context) error {
	return s.shutdown()
}

func (s *pwSession) shutdown() error {
	s.shutdownOnce.Do(func() {
		s.closed.Store(true)
		err := s.browser.Close()
		if stopErr := s.pw.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		s.shutdownErr = err
		s.logger.Debug("browser session quit")
	})
	return s.shutdownErr
}
