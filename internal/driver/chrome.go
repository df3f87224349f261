package driver

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/security"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type chromeProvider struct {
	name     string
	headless bool
	execPath string
	binaries []string
	logger   *zap.Logger
}

func (p *chromeProvider) Name() string { return p.name }

func (p *chromeProvider) Settings() Settings {
	execPath := p.execPath
	if execPath == "" {
		execPath = lookPath(p.binaries)
	}
	return Settings{
		Capabilities: Capabilities{
			AcceptInsecureCerts: true,
			Maximized:           true,
			Headless:            p.headless,
		},
		ExecPath:     execPath,
		WindowWidth:  defaultWindowWidth,
		WindowHeight: defaultWindowHeight,
	}
}

func (p *chromeProvider) Launch(ctx context.Context) (Session, error) {
	settings := p.Settings()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.IgnoreCertErrors,
		chromedp.WindowSize(settings.WindowWidth, settings.WindowHeight),
	)
	if !p.headless {
		opts = append(opts,
			chromedp.Flag("headless", false),
			chromedp.Flag("start-maximized", true),
		)
	}
	if settings.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(settings.ExecPath))
	}

	// The allocator outlives the launch request.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	return newCDPSession(ctx, cdpSessionConfig{
		browser:      p.name,
		allocCtx:     allocCtx,
		cancelAlloc:  cancelAlloc,
		capabilities: settings.Capabilities,
		logger:       p.logger,
	})
}

type cdpSessionConfig struct {
	browser      string
	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	capabilities Capabilities
	logger       *zap.Logger
	// onQuit runs after the browser connection is gone.
	onQuit func(ctx context.Context) error
}

// cdpSession drives a Chromium-family browser over the DevTools protocol.
type cdpSession struct {
	id     string
	cfg    cdpSessionConfig
	tabCtx context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	closed atomic.Bool
}

func newCDPSession(ctx context.Context, cfg cdpSessionConfig) (*cdpSession, error) {
	tabCtx, cancelTab := chromedp.NewContext(cfg.allocCtx)
	s := &cdpSession{
		id:     uuid.New().String(),
		cfg:    cfg,
		tabCtx: tabCtx,
		cancel: cancelTab,
		logger: cfg.logger.With(zap.String("browser", cfg.browser)),
	}

	// The first Run allocates the browser and binds it to tabCtx.
	if err := chromedp.Run(tabCtx); err != nil {
		_ = s.Quit(context.WithoutCancel(ctx))
		return nil, err
	}
	if err := s.run(ctx, chromedp.ActionFunc(s.applyDefaults)); err != nil {
		_ = s.Quit(context.WithoutCancel(ctx))
		return nil, err
	}

	s.logger = s.logger.With(zap.String("session_id", s.id))
	s.logger.Debug("browser session ready")
	return s, nil
}

func (s *cdpSession) applyDefaults(ctx context.Context) error {
	if s.cfg.capabilities.AcceptInsecureCerts {
		if err := security.SetIgnoreCertificateErrors(true).Do(ctx); err != nil {
			return err
		}
	}
	if s.cfg.capabilities.Maximized && !s.cfg.capabilities.Headless {
		windowID, _, err := browser.GetWindowForTarget().Do(ctx)
		if err != nil {
			s.logger.Warn("failed to look up browser window", zap.Error(err))
			return nil
		}
		bounds := &browser.Bounds{WindowState: browser.WindowStateMaximized}
		if err := browser.SetWindowBounds(windowID, bounds).Do(ctx); err != nil {
			s.logger.Warn("failed to maximize browser window", zap.Error(err))
		}
	}
	return nil
}

// run executes actions on the session's tab. Cancelling ctx aborts only this
// call; the tab itself stays open.
func (s *cdpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *cdpSession) ID() string                 { return s.id }
func (s *cdpSession) Browser() string            { return s.cfg.browser }
func (s *cdpSession) Capabilities() Capabilities { return s.cfg.capabilities }
func (s *cdpSession) Closed() bool               { return s.closed.Load() }

func (s *cdpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *cdpSession) Evaluate(ctx context.Context, expr string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

func (s *cdpSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.Evaluate(ctx, outerHTMLScript, &html); err != nil {
		return "", err
	}
	return html, nil
}

func (s *cdpSession) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var res AttributeResult
	if err := s.Evaluate(ctx, AttributeScript(selector, name), &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

func (s *cdpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *cdpSession) WindowHandles(ctx context.Context) ([]string, error) {
	var handles []string
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		targets, err := chromedp.Targets(ctx)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.Type == "page" {
				handles = append(handles, string(t.TargetID))
			}
		}
		return nil
	}))
	return handles, err
}

func (s *cdpSession) ClearCookies(ctx context.Context) error {
	return s.run(ctx, network.ClearBrowserCookies())
}

func (s *cdpSession) ClearStorage(ctx context.Context) error {
	return s.Evaluate(ctx, clearStorageScript, nil)
}

func (s *cdpSession) CloseWindow(ctx context.Context) error {
	return s.run(ctx, page.Close())
}

func (s *cdpSession) Quit(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := chromedp.Cancel(s.tabCtx)
	s.release()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if s.cfg.onQuit != nil {
		if qerr := s.cfg.onQuit(ctx); qerr != nil && err == nil {
			err = qerr
		}
	}
	s.logger.Debug("browser session quit")
	return err
}

func (s *cdpSession) release() {
	s.cancel()
	s.cfg.cancelAlloc()
}
