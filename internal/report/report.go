// Package report turns a cucumber JSON results file into an HTML report and
// a JUnit XML report.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

const (
	HTMLFile  = "cucumber-report.html"
	JUnitFile = "junit.xml"
)

// Sink consumes a finished results file.
type Sink interface {
	Generate(ctx context.Context, resultsFile string) error
}

// ReportGenerationError reports a results file that could not be turned into
// reports. Stage is "read", "parse", "html" or "junit".
type ReportGenerationError struct {
	Path  string
	Stage string
	Err   error
}

func (e *ReportGenerationError) Error() string {
	return fmt.Sprintf("report generation (%s) for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *ReportGenerationError) Unwrap() error {
	return e.Err
}

// Generator is the default Sink.
type Generator struct {
	htmlDir  string
	junitDir string
	title    string
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator writes the HTML report to htmlDir and junit.xml to junitDir.
// An empty junitDir means htmlDir.
func NewGenerator(htmlDir, junitDir string, logger *zap.Logger) *Generator {
	if junitDir == "" {
		junitDir = htmlDir
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		htmlDir:  htmlDir,
		junitDir: junitDir,
		title:    "cukebrowser report",
		logger:   logger.Named("report"),
		now:      time.Now,
	}
}

// ReadResults decodes a cucumber JSON results file.
func ReadResults(path string) ([]models.Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReportGenerationError{Path: path, Stage: "read", Err: err}
	}
	var features []models.Feature
	if err := json.Unmarshal(data, &features); err != nil {
		return nil, &ReportGenerationError{Path: path, Stage: "parse", Err: err}
	}
	return features, nil
}

// Generate writes both reports concurrently.
func (g *Generator) Generate(ctx context.Context, resultsFile string) error {
	features, err := ReadResults(resultsFile)
	if err != nil {
		return err
	}
	summary := models.Summarize(features)
	summary.GeneratedAt = g.now()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		path := filepath.Join(g.htmlDir, HTMLFile)
		if err := writeFile(ctx, path, func(f *os.File) error {
			return renderHTML(f, g.title, summary, features)
		}); err != nil {
			return &ReportGenerationError{Path: resultsFile, Stage: "html", Err: err}
		}
		g.logger.Info("html report written", zap.String("path", path))
		return nil
	})
	group.Go(func() error {
		path := filepath.Join(g.junitDir, JUnitFile)
		if err := writeFile(ctx, path, func(f *os.File) error {
			return renderJUnit(f, summary, features)
		}); err != nil {
			return &ReportGenerationError{Path: resultsFile, Stage: "junit", Err: err}
		}
		g.logger.Info("junit report written", zap.String("path", path))
		return nil
	})
	return group.Wait()
}

// writeFile renders into a temp file and renames it over path.
func writeFile(ctx context.Context, path string, render func(*os.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := render(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// DirExists reports whether dir is an existing directory.
func DirExists(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(dir)
	if err != nil {
		return false
	}
	return info.IsDir()
}
