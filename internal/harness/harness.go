// Package harness wires the browser session into godog's scenario
// lifecycle. A Harness is the Run Context: one per test run, owning the
// session manager, wait engine, object namespaces, report sink and metrics.
package harness

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/driver"
	"github.com/shehryarbajwa/cukebrowser/internal/metrics"
	"github.com/shehryarbajwa/cukebrowser/internal/objects"
	"github.com/shehryarbajwa/cukebrowser/internal/report"
	"github.com/shehryarbajwa/cukebrowser/internal/session"
	"github.com/shehryarbajwa/cukebrowser/internal/wait"
	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

// StepInitializer registers step definitions on a scenario.
type StepInitializer func(sc *godog.ScenarioContext)

// Harness is the per-run context shared by every hook and step.
type Harness struct {
	cfg     config.Config
	runID   string
	logger  *zap.Logger
	creator session.Creator
	closer  io.Closer
	metrics *metrics.Recorder
	sink    report.Sink
	output  io.Writer
	steps   []StepInitializer

	sessions *session.Manager
	engine   *wait.Engine
	shared   objects.Namespace
	pages    objects.Namespace

	mu       sync.Mutex
	fatal    error
	outcomes []models.ScenarioOutcome

	done       chan struct{}
	finishOnce sync.Once
}

// Option configures a Harness.
type Option func(*Harness)

func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCreator replaces the default driver factory.
func WithCreator(c session.Creator) Option {
	return func(h *Harness) { h.creator = c }
}

func WithSink(s report.Sink) Option {
	return func(h *Harness) { h.sink = s }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithOutput sets where the pretty formatter writes.
func WithOutput(w io.Writer) Option {
	return func(h *Harness) { h.output = w }
}

// WithSteps adds step definitions to every scenario.
func WithSteps(steps ...StepInitializer) Option {
	return func(h *Harness) { h.steps = append(h.steps, steps...) }
}

// New builds the Run Context for cfg. Object directories are loaded here so
// a broken object file fails before any browser starts.
func New(cfg config.Config, opts ...Option) (*Harness, error) {
	h := &Harness{
		cfg:    cfg,
		runID:  uuid.NewString(),
		logger: zap.NewNop(),
		output: os.Stdout,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("run_id", h.runID))

	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.creator == nil {
		factory := driver.NewDefaultFactory(h.logger, driver.Options{
			ChromePath:       cfg.ChromePath,
			FirefoxPath:      cfg.FirefoxPath,
			BrowserlessImage: cfg.BrowserlessImage,
		})
		h.creator = factory
		h.closer = factory
	}
	if h.sink == nil {
		h.sink = report.NewGenerator(cfg.ReportsDir, cfg.JUnitOutputDir(), h.logger)
	}

	var err error
	if h.shared, err = objects.LoadShared(cfg.SharedObjectDirs...); err != nil {
		return nil, err
	}
	if h.pages, err = objects.LoadPages(cfg.PageObjectDir); err != nil {
		return nil, err
	}

	h.engine = wait.NewEngine(cfg.Timeout,
		wait.WithPollInterval(cfg.PollInterval),
		wait.WithLogger(h.logger),
		wait.WithRecorder(h.metrics))
	h.sessions = session.NewManager(h.creator, session.Config{
		Browser:     cfg.Browser,
		Policy:      session.ParsePolicy(cfg.TeardownPolicy),
		Screenshots: cfg.Screenshots,
	}, h.logger, session.WithRecorder(h.metrics))

	return h, nil
}

func (h *Harness) RunID() string              { return h.runID }
func (h *Harness) Config() config.Config      { return h.cfg }
func (h *Harness) Sessions() *session.Manager { return h.sessions }
func (h *Harness) Engine() *wait.Engine       { return h.engine }
func (h *Harness) Metrics() *metrics.Recorder { return h.metrics }

// Done is closed once Finish has completed.
func (h *Harness) Done() <-chan struct{} { return h.done }

// Outcomes returns the finished scenarios in order.
func (h *Harness) Outcomes() []models.ScenarioOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.ScenarioOutcome(nil), h.outcomes...)
}

// Fatal returns the session error that broke the run, if any.
func (h *Harness) Fatal() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatal
}

// Run executes the features with godog and then finishes the run. It returns
// godog's exit status.
func (h *Harness) Run(ctx context.Context) int {
	opts := godog.Options{
		Format:         "pretty",
		Output:         h.output,
		Paths:          h.cfg.Features,
		Tags:           h.cfg.Tags,
		Concurrency:    1,
		Strict:         true,
		DefaultContext: ctx,
	}
	if results := h.cfg.ResultsFile(); results != "" {
		if err := os.MkdirAll(h.cfg.ReportsDir, 0755); err != nil {
			h.logger.Warn("reports directory not created", zap.Error(err))
		} else {
			opts.Format += ",cucumber:" + results
		}
	}

	suite := godog.TestSuite{
		Name:                 "cukebrowser",
		TestSuiteInitializer: h.InitializeTestSuite,
		ScenarioInitializer:  h.InitializeScenario,
		Options:              &opts,
	}
	status := suite.Run()

	if err := h.Finish(ctx); err != nil {
		h.logger.Warn("run finish incomplete", zap.Error(err))
	}
	return status
}

// Finish runs after the last scenario: reports first, then teardown per
// policy, then the metrics export. Report and teardown failures are logged.
// Only the first call does any work.
func (h *Harness) Finish(ctx context.Context) error {
	var err error
	h.finishOnce.Do(func() {
		defer close(h.done)
		err = h.finish(ctx)
	})
	return err
}

func (h *Harness) finish(ctx context.Context) error {
	reportsDir := h.cfg.ReportsDir
	if report.DirExists(reportsDir) {
		genErr := h.sink.Generate(ctx, h.cfg.ResultsFile())
		h.metrics.ReportGenerated(genErr)
		if genErr != nil {
			h.logger.Warn("report generation failed", zap.Error(genErr))
		}
	} else if reportsDir != "" {
		h.logger.Info("reports directory missing, reports skipped", zap.String("dir", reportsDir))
	}

	var errs []error
	if h.sessions.Policy().DestroysAtEnd() {
		if tdErr := h.sessions.Teardown(ctx).Wait(ctx); tdErr != nil {
			var teardownErr *session.TeardownError
			if !errors.As(tdErr, &teardownErr) {
				errs = append(errs, tdErr)
			}
			h.logger.Warn("session teardown failed", zap.Error(tdErr))
		}
	}

	if report.DirExists(reportsDir) {
		if path, mErr := h.metrics.WriteTextfile(reportsDir); mErr != nil {
			h.logger.Warn("metrics not written", zap.Error(mErr))
		} else {
			h.logger.Debug("metrics written", zap.String("path", path))
		}
	}

	if h.closer != nil {
		if cErr := h.closer.Close(); cErr != nil {
			h.logger.Warn("driver cleanup failed", zap.Error(cErr))
		}
	}
	h.logger.Info("run finished", zap.Int("scenarios", len(h.Outcomes())))
	return errors.Join(errs...)
}

// SessionInfo describes the run's browser session.
func (h *Harness) SessionInfo() models.SessionInfo {
	return h.sessions.Info()
}
