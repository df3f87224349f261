package drivertest

import (
	"context"
	"sync"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

// Provider is a fake driver.Provider that hands out fake sessions.
type Provider struct {
	name     string
	settings driver.Settings

	mu       sync.Mutex
	launched []*Session
	err      error

	// Configure runs on every new session before it is returned.
	Configure func(*Session)
}

// NewProvider returns a provider named name with SSL trust and maximize on.
func NewProvider(name string) *Provider {
	return &Provider{
		name: name,
		settings: driver.Settings{
			Capabilities: driver.Capabilities{AcceptInsecureCerts: true, Maximized: true},
		},
	}
}

// FailWith makes subsequent launches return err.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Launched returns every session created so far.
func (p *Provider) Launched() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Session(nil), p.launched...)
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Settings() driver.Settings { return p.settings }

func (p *Provider) Launch(ctx context.Context) (driver.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	s := NewSession(p.name)
	s.SetCapabilities(p.settings.Capabilities)
	if p.Configure != nil {
		p.Configure(s)
	}
	p.launched = append(p.launched, s)
	return s, nil
}
