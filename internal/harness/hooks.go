package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/helpers"
	"github.com/shehryarbajwa/cukebrowser/internal/report"
	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

// InitializeTestSuite is godog's TestSuiteInitializer.
func (h *Harness) InitializeTestSuite(tsc *godog.TestSuiteContext) {
	tsc.BeforeSuite(func() {
		h.logger.Info("suite starting",
			zap.String("browser", h.cfg.Browser),
			zap.String("policy", string(h.sessions.Policy())),
			zap.Strings("features", h.cfg.Features))
	})
	tsc.AfterSuite(func() {
		h.logger.Info("suite finished", zap.Int("scenarios", len(h.Outcomes())))
	})
}

// InitializeScenario is godog's ScenarioInitializer.
func (h *Harness) InitializeScenario(sc *godog.ScenarioContext) {
	sc.Before(h.beforeScenario)
	sc.After(h.afterScenario)
	sc.StepContext().Before(h.beforeStep)
	for _, register := range h.steps {
		register(sc)
	}
}

func (h *Harness) beforeScenario(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	if err := h.Fatal(); err != nil {
		return ctx, fmt.Errorf("browser session unavailable: %w", err)
	}

	s, err := h.sessions.Acquire(ctx)
	if err != nil {
		h.mu.Lock()
		h.fatal = err
		h.mu.Unlock()
		h.logger.Error("browser session could not be established", zap.Error(err))
		return ctx, err
	}

	t := &stepT{}
	w := &World{
		Session: s,
		Wait:    h.engine,
		Helpers: helpers.New(s, h.engine),
		Assert:  assert.New(t),
		Shared:  h.shared,
		Pages:   h.pages,
		Config:  h.cfg,
		t:       t,
	}
	h.logger.Debug("scenario starting", zap.String("scenario", sc.Name), zap.String("uri", sc.Uri))
	return withWorld(ctx, w), nil
}

func (h *Harness) beforeStep(ctx context.Context, _ *godog.Step) (context.Context, error) {
	if w := WorldFrom(ctx); w != nil {
		w.t.reset()
	}
	return ctx, nil
}

func (h *Harness) afterScenario(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
	out := models.ScenarioOutcome{
		Name:   sc.Name,
		URI:    sc.Uri,
		Failed: err != nil,
	}
	if err != nil {
		out.Error = err.Error()
	}

	h.sessions.Complete(ctx, &out)
	if len(out.Screenshot) > 0 {
		ctx = godog.Attach(ctx, godog.Attachment{
			Body:      out.Screenshot,
			FileName:  "screenshot.png",
			MediaType: "image/png",
		})
	}
	h.metrics.ScenarioFinished(out.Failed)

	h.mu.Lock()
	h.outcomes = append(h.outcomes, out)
	n := len(h.outcomes)
	h.mu.Unlock()

	if len(out.Screenshot) > 0 && report.DirExists(h.cfg.ReportsDir) {
		if path, err := saveScreenshot(h.cfg.ReportsDir, n, out); err != nil {
			h.logger.Warn("screenshot not saved", zap.Error(err))
		} else {
			h.logger.Info("failure screenshot saved", zap.String("path", path))
		}
	}

	// The step error is already godog's; the hook adds none of its own.
	return ctx, nil
}

// saveScreenshot writes <dir>/screenshots/<nnn>-<scenario>.png.
func saveScreenshot(dir string, n int, out models.ScenarioOutcome) (string, error) {
	shots := filepath.Join(dir, "screenshots")
	if err := os.MkdirAll(shots, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(shots, fmt.Sprintf("%03d-%s.png", n, slug(out.Name)))
	return path, os.WriteFile(path, out.Screenshot, 0644)
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "scenario"
	}
	return s
}
