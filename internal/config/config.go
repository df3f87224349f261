// Package config holds the run-wide settings read by the harness.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvBrowser          = "CUKE_BROWSER"
	EnvTimeout          = "CUKE_TIMEOUT"
	EnvPollInterval     = "CUKE_POLL_INTERVAL"
	EnvTeardown         = "CUKE_TEARDOWN"
	EnvReports          = "CUKE_REPORTS"
	EnvJUnit            = "CUKE_JUNIT"
	EnvScreenshots      = "CUKE_SCREENSHOTS"
	EnvVisualDiffAPIKey = "CUKE_VISUAL_DIFF_API_KEY"
	EnvSharedObjects    = "CUKE_SHARED_OBJECTS"
	EnvPageObjects      = "CUKE_PAGE_OBJECTS"
	EnvFeatures         = "CUKE_FEATURES"
	EnvTags             = "CUKE_TAGS"
	EnvBrowserlessImage = "CUKE_BROWSERLESS_IMAGE"
	EnvViewerAddr       = "CUKE_VIEWER_ADDR"
	EnvChromePath       = "CHROME_PATH"
	EnvFirefoxPath      = "FIREFOX_PATH"
)

// Config is the validated input to a test run.
type Config struct {
	Browser      string
	Timeout      time.Duration
	PollInterval time.Duration
	// TeardownPolicy is "always" or anything else; see session.ParsePolicy.
	TeardownPolicy string

	// ReportsDir receives results.json, the HTML report and metrics. Empty
	// disables report writing.
	ReportsDir string
	// JUnitDir defaults to ReportsDir.
	JUnitDir    string
	Screenshots bool
	// VisualDiffAPIKey is passed through to steps that call a visual diff
	// service.
	VisualDiffAPIKey string

	SharedObjectDirs []string
	PageObjectDir    string

	Features []string
	Tags     string

	ChromePath       string
	FirefoxPath      string
	BrowserlessImage string

	ViewerAddr string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Browser:          "chrome",
		Timeout:          15 * time.Second,
		PollInterval:     100 * time.Millisecond,
		TeardownPolicy:   "clear",
		Screenshots:      true,
		SharedObjectDirs: []string{"shared_objects"},
		PageObjectDir:    "page_objects",
		Features:         []string{"features"},
		ViewerAddr:       ":8080",
	}
}

// FromEnv loads the given .env files (".env" when none are named; missing
// files are ignored) and overlays CUKE_* variables on Default.
func FromEnv(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup overlays the variables resolved by lookup on Default.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str(EnvBrowser, &cfg.Browser)
	dur(EnvTimeout, &cfg.Timeout)
	dur(EnvPollInterval, &cfg.PollInterval)
	str(EnvTeardown, &cfg.TeardownPolicy)
	str(EnvReports, &cfg.ReportsDir)
	str(EnvJUnit, &cfg.JUnitDir)
	str(EnvVisualDiffAPIKey, &cfg.VisualDiffAPIKey)
	list(EnvSharedObjects, &cfg.SharedObjectDirs)
	str(EnvPageObjects, &cfg.PageObjectDir)
	list(EnvFeatures, &cfg.Features)
	str(EnvTags, &cfg.Tags)
	str(EnvBrowserlessImage, &cfg.BrowserlessImage)
	str(EnvViewerAddr, &cfg.ViewerAddr)
	str(EnvChromePath, &cfg.ChromePath)
	str(EnvFirefoxPath, &cfg.FirefoxPath)

	if v, ok := lookup(EnvScreenshots); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvScreenshots, err))
		} else {
			cfg.Screenshots = b
		}
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseDuration accepts a Go duration ("3s") or a bare number of
// milliseconds ("3000").
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// Validate reports every setting the harness cannot work with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Browser) == "" {
		errs = append(errs, errors.New("browser is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	} else if c.Timeout > 0 && c.PollInterval > c.Timeout {
		errs = append(errs, fmt.Errorf("poll interval %s exceeds timeout %s", c.PollInterval, c.Timeout))
	}
	if len(c.Features) == 0 {
		errs = append(errs, errors.New("at least one feature path is required"))
	}
	return errors.Join(errs...)
}

// JUnitOutputDir returns where junit.xml goes.
func (c Config) JUnitOutputDir() string {
	if c.JUnitDir != "" {
		return c.JUnitDir
	}
	return c.ReportsDir
}

// ResultsFile returns the cucumber JSON path inside ReportsDir, or "" when
// reports are disabled.
func (c Config) ResultsFile() string {
	if c.ReportsDir == "" {
		return ""
	}
	return filepath.Join(c.ReportsDir, "results.json")
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
