package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"plugin"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PluginSymbol is the factory a Go plugin driver must export:
//
//	var NewSession func() (driver.Session, error)
//
// or an equivalent top-level function.
const PluginSymbol = "NewSession"

// SessionFactory is the zero-argument factory shape custom drivers export.
type SessionFactory func() (Session, error)

type pluginProvider struct {
	path    string
	factory SessionFactory
}

func loadPluginProvider(path string) (Provider, error) {
	plug, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := plug.Lookup(PluginSymbol)
	if err != nil {
		return nil, err
	}
	factory, err := factoryFromSymbol(sym)
	if err != nil {
		return nil, err
	}
	return &pluginProvider{path: path, factory: factory}, nil
}

// factoryFromSymbol accepts a function or a pointer to a function variable
// of the SessionFactory shape.
func factoryFromSymbol(sym any) (SessionFactory, error) {
	switch fn := sym.(type) {
	case func() (Session, error):
		return fn, nil
	case *func() (Session, error):
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	case SessionFactory:
		return fn, nil
	case *SessionFactory:
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	}
	return nil, fmt.Errorf("symbol %s has type %T, want func() (driver.Session, error)", PluginSymbol, sym)
}

func (p *pluginProvider) Name() string       { return p.path }
func (p *pluginProvider) Settings() Settings { return Settings{} }

func (p *pluginProvider) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := p.factory()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New("driver factory returned no session")
	}
	return sess, nil
}

// RemoteDescriptor describes an already running DevTools endpoint.
type RemoteDescriptor struct {
	Name     string `yaml:"name" json:"name"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Insecure *bool  `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	Maximize *bool  `yaml:"maximize,omitempty" json:"maximize,omitempty"`
	Headless bool   `yaml:"headless,omitempty" json:"headless,omitempty"`
}

const remoteProbeTimeout = 10 * time.Second

type remoteProvider struct {
	desc   RemoteDescriptor
	logger *zap.Logger
}

func (f *Factory) loadRemoteProvider(path string) (Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var desc RemoteDescriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("invalid remote descriptor: %w", err)
	}
	if err := desc.validate(); err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = "remote"
	}
	return &remoteProvider{desc: desc, logger: f.logger}, nil
}

func (d RemoteDescriptor) validate() error {
	if d.Endpoint == "" {
		return errors.New("remote descriptor has no endpoint")
	}
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	return nil
}

func (p *remoteProvider) Name() string { return p.desc.Name }

func (p *remoteProvider) Settings() Settings {
	return Settings{
		Capabilities: Capabilities{
			AcceptInsecureCerts: p.desc.Insecure == nil || *p.desc.Insecure,
			Maximized:           p.desc.Maximize == nil || *p.desc.Maximize,
			Headless:            p.desc.Headless,
		},
	}
}

func (p *remoteProvider) Launch(ctx context.Context) (Session, error) {
	if err := probeEndpoint(ctx, p.desc.Endpoint); err != nil {
		return nil, err
	}

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), p.desc.Endpoint)
	return newCDPSession(ctx, cdpSessionConfig{
		browser:      p.desc.Name,
		allocCtx:     allocCtx,
		cancelAlloc:  cancelAlloc,
		capabilities: p.Settings().Capabilities,
		logger:       p.logger,
	})
}

// probeEndpoint checks that a websocket handshake with endpoint succeeds.
func probeEndpoint(ctx context.Context, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, remoteProbeTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("endpoint %s refused websocket upgrade (%s): %w", endpoint, resp.Status, err)
		}
		return fmt.Errorf("endpoint %s unreachable: %w", endpoint, err)
	}
	return conn.Close()
}
