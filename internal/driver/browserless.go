package driver

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	browserpool "github.com/shehryarbajwa/cukebrowser/internal/browser"
)

// browserlessProvider runs Chrome inside a docker container and attaches to
// it over the DevTools websocket.
type browserlessProvider struct {
	image  string
	logger *zap.Logger

	mu   sync.Mutex
	pool *browserpool.Pool
}

func newBrowserlessProvider(image string, logger *zap.Logger) *browserlessProvider {
	if image == "" {
		image = browserpool.DefaultImage
	}
	return &browserlessProvider{image: image, logger: logger}
}

func (p *browserlessProvider) Name() string { return Browserless }

func (p *browserlessProvider) Settings() Settings {
	return Settings{
		Capabilities: Capabilities{
			AcceptInsecureCerts: true,
			Maximized:           true,
			Headless:            true,
		},
		WindowWidth:  defaultWindowWidth,
		WindowHeight: defaultWindowHeight,
	}
}

// connectPool creates the docker client on first use so other providers
// work on machines without a daemon.
func (p *browserlessProvider) connectPool(ctx context.Context) (*browserpool.Pool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		return p.pool, nil
	}
	pool, err := browserpool.NewPool(p.image, p.logger)
	if err != nil {
		return nil, err
	}
	if err := pool.EnsureImage(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure image %s: %w", p.image, err)
	}
	p.pool = pool
	return pool, nil
}

func (p *browserlessProvider) Launch(ctx context.Context) (Session, error) {
	pool, err := p.connectPool(ctx)
	if err != nil {
		return nil, err
	}

	settings := p.Settings()
	instance, err := pool.LaunchBrowser(ctx, uuid.New().String())
	if err != nil {
		return nil, err
	}

	// browserless reads launch flags from the query string.
	url := fmt.Sprintf("%s?--ignore-certificate-errors&--window-size=%d,%d",
		instance.ConnectURL, settings.WindowWidth, settings.WindowHeight)
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), url, chromedp.NoModifyURL)

	return newCDPSession(ctx, cdpSessionConfig{
		browser:      Browserless,
		allocCtx:     allocCtx,
		cancelAlloc:  cancelAlloc,
		capabilities: settings.Capabilities,
		logger:       p.logger,
		onQuit: func(ctx context.Context) error {
			return pool.StopBrowser(context.WithoutCancel(ctx), instance.ContainerID)
		},
	})
}

// Close releases the docker client, if one was created.
func (p *browserlessProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return nil
	}
	err := p.pool.Close()
	p.pool = nil
	return err
}
