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
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/api"
	"github.com/shehryarbajwa/cukebrowser/internal/config"
	"github.com/shehryarbajwa/cukebrowser/internal/ratelimit"
)

func newServeCmd() *cobra.Command {
	var (
		reports  string
		addr     string
		rpm      int
		envFiles []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reports of a finished run over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv(envFiles...)
			if err != nil {
				return &usageError{err: err}
			}
			if cmd.Flags().Changed("reports") {
				cfg.ReportsDir = reports
			}
			if cmd.Flags().Changed("addr") {
				cfg.ViewerAddr = addr
			}
			if cfg.ReportsDir == "" {
				return &usageError{err: errors.New("a reports directory is required (--reports or CUKE_REPORTS)")}
			}
			return serveReports(cmd.Context(), cfg, rpm)
		},
	}
	cmd.Flags().StringVar(&reports, "reports", "", "reports directory to serve")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().IntVar(&rpm, "rate-limit", 600, "API requests per minute per client")
	cmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
	return cmd
}

func serveReports(ctx context.Context, cfg config.Config, rpm int) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	handler := api.NewHandler(cfg.ReportsDir, nil, logger)
	srv := newHTTPServer(cfg.ViewerAddr, handler.SetupRoutes(ratelimit.NewLimiter(rpm, 20), nil))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("report viewer listening",
			zap.String("addr", cfg.ViewerAddr),
			zap.String("reports", cfg.ReportsDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down report viewer")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
