package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Settings are the standing defaults a provider applies when launching.
type Settings struct {
	Capabilities
	ExecPath     string `json:"execPath,omitempty"`
	WindowWidth  int    `json:"windowWidth,omitempty"`
	WindowHeight int    `json:"windowHeight,omitempty"`
}

// Provider launches sessions for one named browser.
type Provider interface {
	Name() string
	Settings() Settings
	Launch(ctx context.Context) (Session, error)
}

// Factory dispatches a browser identifier to a registered provider, falling
// back to a custom provider loaded from a filesystem path.
type Factory struct {
	providers map[string]Provider
	logger    *zap.Logger
	mu        sync.RWMutex

	// loaders map file extensions to custom provider loaders.
	loaders map[string]func(path string) (Provider, error)
}

// NewFactory creates a factory with no named providers registered.
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Factory{
		providers: make(map[string]Provider),
		logger:    logger.Named("driver"),
	}
	f.loaders = map[string]func(string) (Provider, error){
		".so":   loadPluginProvider,
		".yaml": f.loadRemoteProvider,
		".yml":  f.loadRemoteProvider,
		".json": f.loadRemoteProvider,
	}
	return f
}

// NewDefaultFactory creates a factory with every built-in provider registered.
func NewDefaultFactory(logger *zap.Logger, opts Options) *Factory {
	f := NewFactory(logger)
	for _, p := range builtinProviders(f.logger, opts) {
		f.Register(p)
	}
	return f
}

// Register adds or replaces a named provider.
func (f *Factory) Register(p Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[strings.ToLower(p.Name())] = p
}

// Provider returns the named provider, if registered.
func (f *Factory) Provider(name string) (Provider, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.providers[strings.ToLower(name)]
	return p, ok
}

// Names returns the registered provider names in sorted order.
func (f *Factory) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateSession launches a session for identifier.
func (f *Factory) CreateSession(ctx context.Context, identifier string) (Session, error) {
	if p, ok := f.Provider(identifier); ok {
		f.logger.Info("launching browser", zap.String("browser", p.Name()))
		sess, err := p.Launch(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to launch %s: %w", p.Name(), err)
		}
		return sess, nil
	}

	p, path, err := f.resolveCustom(identifier)
	if err != nil {
		return nil, err
	}

	f.logger.Info("launching custom browser driver", zap.String("path", path))
	sess, err := p.Launch(ctx)
	if err != nil {
		return nil, &DriverLoadError{Path: path, Err: err}
	}
	return sess, nil
}

func (f *Factory) resolveCustom(identifier string) (Provider, string, error) {
	if identifier == "" {
		return nil, "", &UnknownDriverError{Identifier: identifier}
	}

	path, err := filepath.Abs(identifier)
	if err != nil {
		return nil, "", &UnknownDriverError{Identifier: identifier}
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", &UnknownDriverError{Identifier: identifier}
		}
		return nil, "", &DriverLoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, "", &DriverLoadError{Path: path, Err: errors.New("path is a directory")}
	}

	load, ok := f.loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, "", &DriverLoadError{Path: path, Err: fmt.Errorf("unsupported driver file type %q", filepath.Ext(path))}
	}
	p, err := load(path)
	if err != nil {
		return nil, "", &DriverLoadError{Path: path, Err: err}
	}
	return p, path, nil
}

// Close releases resources held by registered providers.
func (f *Factory) Close() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var errs []error
	for _, p := range f.providers {
		if c, ok := p.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
