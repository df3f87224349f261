package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/api"
	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/harness"
	"github.com/shehryarbajwa/cukebrowser/internal/ratelimit"
)

type runFlags struct {
	envFiles         []string
	browser          string
	timeout          time.Duration
	pollInterval     time.Duration
	teardown         string
	reports          string
	junit            string
	noScreenshots    bool
	sharedObjects    []string
	pageObjects      string
	tags             string
	chromePath       string
	firefoxPath      string
	browserlessImage string
	serve            string
}

func newRunCmd() *cobra.Command {
	return runCommand(&runFlags{})
}

func runCommand(f *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [features...]",
		Short: "Run feature files with a browser session per run",
		Long: `Runs the given feature files or directories with godog. One browser
session is shared by every scenario and closed after the last one, unless
--teardown=always leaves it to the scenarios.

Settings come from .env, then CUKE_* environment variables, then flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv(f.envFiles...)
			if err != nil {
				return &usageError{err: err}
			}
			f.apply(cmd.Flags(), &cfg, args)
			if err := cfg.Validate(); err != nil {
				return &usageError{err: err}
			}
			return runFeatures(cmd.Context(), cfg, f.serve)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVar(&f.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	fl.StringVarP(&f.browser, "browser", "b", "", "browser name or path to a custom driver")
	fl.DurationVar(&f.timeout, "timeout", 0, "default wait timeout")
	fl.DurationVar(&f.pollInterval, "poll-interval", 0, "pause between wait attempts")
	fl.StringVar(&f.teardown, "teardown", "", `teardown policy: "always" or "clear"`)
	fl.StringVar(&f.reports, "reports", "", "directory for results.json, HTML report and metrics")
	fl.StringVar(&f.junit, "junit", "", "directory for junit.xml (default --reports)")
	fl.BoolVar(&f.noScreenshots, "no-screenshots", false, "skip screenshots of failed scenarios")
	fl.StringSliceVar(&f.sharedObjects, "shared-objects", nil, "directories of shared objects")
	fl.StringVar(&f.pageObjects, "page-objects", "", "directory of page objects")
	fl.StringVarP(&f.tags, "tags", "t", "", "tag expression selecting scenarios")
	fl.StringVar(&f.chromePath, "chrome-path", "", "Chrome binary")
	fl.StringVar(&f.firefoxPath, "firefox-path", "", "Firefox binary")
	fl.StringVar(&f.browserlessImage, "browserless-image", "", "docker image for the browserless provider")
	fl.StringVar(&f.serve, "serve", "", "serve the report viewer on this address while running")
	return cmd
}

// apply overlays the flags the user set on cfg.
func (f *runFlags) apply(fl *pflag.FlagSet, cfg *config.Config, args []string) {
	set := func(name string, fn func()) {
		if fl.Changed(name) {
			fn()
		}
	}
	set("browser", func() { cfg.Browser = f.browser })
	set("timeout", func() { cfg.Timeout = f.timeout })
	set("poll-interval", func() { cfg.PollInterval = f.pollInterval })
	set("teardown", func() { cfg.TeardownPolicy = f.teardown })
	set("reports", func() { cfg.ReportsDir = f.reports })
	set("junit", func() { cfg.JUnitDir = f.junit })
	set("no-screenshots", func() { cfg.Screenshots = !f.noScreenshots })
	set("shared-objects", func() { cfg.SharedObjectDirs = f.sharedObjects })
	set("page-objects", func() { cfg.PageObjectDir = f.pageObjects })
	set("tags", func() { cfg.Tags = f.tags })
	set("chrome-path", func() { cfg.ChromePath = f.chromePath })
	set("firefox-path", func() { cfg.FirefoxPath = f.firefoxPath })
	set("browserless-image", func() { cfg.BrowserlessImage = f.browserlessImage })
	if len(args) > 0 {
		cfg.Features = args
	}
}

func runFeatures(ctx context.Context, cfg config.Config, serveAddr string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	h, err := harness.New(cfg,
		harness.WithLogger(logger),
		harness.WithSteps(harness.CommonSteps))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		handler := api.NewHandler(cfg.ReportsDir, h, logger)
		srv := newHTTPServer(serveAddr, handler.SetupRoutes(ratelimit.NewLimiter(600, 50), h.Metrics().Registry()))
		go func() {
			logger.Info("report viewer listening", zap.String("addr", serveAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("report viewer failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	status := h.Run(ctx)
	logger.Info("run complete", zap.Int("status", status), zap.String("run_id", h.RunID()))
	if status != 0 {
		return &exitError{code: status}
	}
	return nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
