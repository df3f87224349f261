package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"

	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/driver"
	"github.com/shehryarbajwa/cukebrowser/internal/helpers"
	"github.com/shehryarbajwa/cukebrowser/internal/objects"
	"github.com/shehryarbajwa/cukebrowser/internal/wait"
)

type worldKey struct{}

// World is what step definitions see of the run: the session, the wait
// engine, the interaction helpers, an assertion library bound to the current
// step, and the loaded objects.
type World struct {
	Session driver.Session
	Wait    *wait.Engine
	Helpers *helpers.Helpers
	Assert  *assert.Assertions
	Shared  objects.Namespace
	Pages   objects.Namespace
	Config  config.Config

	t *stepT
}

// WorldFrom returns the World published for the current scenario, or nil
// outside a scenario.
func WorldFrom(ctx context.Context) *World {
	w, _ := ctx.Value(worldKey{}).(*World)
	return w
}

func withWorld(ctx context.Context, w *World) context.Context {
	return context.WithValue(ctx, worldKey{}, w)
}

// Resolve expands a step argument of the form "$shared.path" or
// "$page.path" from the object namespaces. Other arguments are returned as
// they are.
func (w *World) Resolve(arg string) (string, error) {
	var ns objects.Namespace
	var path string
	switch {
	case strings.HasPrefix(arg, "$shared."):
		ns, path = w.Shared, strings.TrimPrefix(arg, "$shared.")
	case strings.HasPrefix(arg, "$page."):
		ns, path = w.Pages, strings.TrimPrefix(arg, "$page.")
	default:
		return arg, nil
	}
	v, ok := ns.String(path)
	if !ok {
		return "", fmt.Errorf("no object value at %s", arg)
	}
	return v, nil
}

// Err returns the assertion failures recorded by Assert during the current
// step and clears them. Steps using Assert end with "return w.Err()".
func (w *World) Err() error {
	err := w.t.err()
	w.t.reset()
	return err
}

// stepT records assertion failures for the current step.
type stepT struct {
	mu     sync.Mutex
	errors []error
}

func (t *stepT) Errorf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, fmt.Errorf(format, args...))
}

func (t *stepT) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = nil
}

func (t *stepT) err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.errors...)
}
