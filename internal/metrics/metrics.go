// Package metrics counts what a test run did to the browser: sessions,
// scenarios, waits, screenshots and hygiene passes.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cukebrowser"

// Recorder owns a registry so every run exports only its own series.
// A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	sessionsCreated *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	screenshots     *prometheus.CounterVec
	hygiene         *prometheus.CounterVec
	scenarios       *prometheus.CounterVec
	waits           *prometheus.HistogramVec
	reports         *prometheus.CounterVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Browser sessions created.",
		}, []string{"browser"}),
		sessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Browser sessions closed, by whether teardown failed.",
		}, []string{"browser", "failed"}),
		screenshots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failure_screenshots_total",
			Help:      "Screenshots captured for failed scenarios.",
		}, []string{"browser"}),
		hygiene: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hygiene_runs_total",
			Help:      "Cookie and storage clearing passes between scenarios.",
		}, []string{"browser", "failed"}),
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Finished scenarios by status.",
		}, []string{"status"}),
		waits: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "wait_duration_seconds",
			Help:      "Time spent in condition waits, by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"outcome"}),
		reports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_generated_total",
			Help:      "Report generation attempts by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry for HTTP handlers and tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) SessionCreated(browser string) {
	if r == nil {
		return
	}
	r.sessionsCreated.WithLabelValues(browser).Inc()
}

func (r *Recorder) SessionClosed(browser string, failed bool) {
	if r == nil {
		return
	}
	r.sessionsClosed.WithLabelValues(browser, strconv.FormatBool(failed)).Inc()
}

func (r *Recorder) ScreenshotTaken(browser string) {
	if r == nil {
		return
	}
	r.screenshots.WithLabelValues(browser).Inc()
}

func (r *Recorder) HygieneRun(browser string, failed bool) {
	if r == nil {
		return
	}
	r.hygiene.WithLabelValues(browser, strconv.FormatBool(failed)).Inc()
}

// ScenarioFinished counts one scenario as "passed" or "failed".
func (r *Recorder) ScenarioFinished(failed bool) {
	if r == nil {
		return
	}
	status := "passed"
	if failed {
		status = "failed"
	}
	r.scenarios.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordWait(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.waits.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ReportGenerated counts a report generation attempt.
func (r *Recorder) ReportGenerated(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.reports.WithLabelValues(result).Inc()
}

// WriteTextfile writes the registry in the text exposition format to
// <dir>/metrics.prom, ready for a node_exporter textfile collector.
func (r *Recorder) WriteTextfile(dir string) (string, error) {
	if r == nil {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}
	path := filepath.Join(dir, "metrics.prom")
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return "", fmt.Errorf("failed to write metrics: %w", err)
	}
	return path, nil
}
