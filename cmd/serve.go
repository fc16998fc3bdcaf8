package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/api"
	"github.com/khanhnv2901/seca-probe/internal/application"
	consts "github.com/khanhnv2901/seca-probe/internal/shared/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run seca-probe as a REST API service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)
		cfg := appCtx.Config.Serve
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

		if cfg.MaxJobs <= 0 {
			return &UsageError{Err: fmt.Errorf("--max-jobs must be positive")}
		}
		if cfg.JobHistory <= 0 {
			return &UsageError{Err: fmt.Errorf("--job-history must be positive")}
		}

		handler, shutdown, err := newAPIHandler(appCtx, cfg)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			IdleTimeout:       120 * time.Second,
			// No WriteTimeout: the scans-stream endpoint holds its response open.
		}

		out := cmd.OutOrStdout()
		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(out, "%s API server listening on %s (results dir: %s)\n", colorInfo("→"), cfg.Addr, appCtx.ResultsDir)
			fmt.Fprintf(out, "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-serverErrors:
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = shutdown(shutdownCtx)
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			fmt.Fprintf(out, "\n%s Received shutdown signal, draining...\n", colorInfo("→"))

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Stop scan jobs first so SSE subscribers see their final state.
			if err := shutdown(shutdownCtx); err != nil {
				appCtx.Logger.Warn("scan jobs did not finish before shutdown timeout", zap.Error(err))
			}
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Fprintf(out, "%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func init() {
	flags := serveCmd.Flags()
	cfg := &cliConfig.Serve
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address for the API server")
	flags.StringVar(&cfg.AuthToken, "auth-token", cfg.AuthToken, "Optional shared secret for API requests (X-Auth-Token)")
	flags.IntVar(&cfg.MaxJobs, "max-jobs", cfg.MaxJobs, "Maximum scans running at once")
	flags.IntVar(&cfg.JobHistory, "job-history", cfg.JobHistory, "Finished jobs kept in memory before the oldest are dropped")
	flags.StringSliceVar(&cfg.CORSOrigins, "cors-origins", cfg.CORSOrigins, "Allowed CORS origins (empty = allow all)")
	flags.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Rate limit per IP (requests/second, 0 = disabled)")
	flags.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "Rate limit burst size")
	flags.BoolVar(&cfg.Save, "save", cfg.Save, "Persist reports of API scans")
	flags.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}

// newAPIHandler wires the scan service into the HTTP API. The returned func
// cancels outstanding scan jobs and releases background resources.
func newAPIHandler(appCtx *AppContext, cfg ServeRuntimeConfig) (http.Handler, func(context.Context) error, error) {
	scanCfg := appCtx.Config.Scan
	container, err := application.NewContainer(appCtx.ResultsDir, application.Options{
		Proxy:         scanCfg.Proxy,
		RateLimit:     scanCfg.Rate,
		LookupTimeout: consts.DefaultLookupTimeout,
		Logger:        appCtx.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	jobManager := api.NewJobManager()
	jobManager.SetMaxJobs(cfg.JobHistory)
	jobs := api.NewScanJobService(container.ScanService, jobManager, int64(cfg.MaxJobs), cfg.Save, appCtx.Logger)

	server := api.NewServer(api.Config{
		Jobs:        jobs,
		Reports:     container.ScanService,
		Health:      &healthAPIService{resultsDir: appCtx.ResultsDir},
		AuthToken:   cfg.AuthToken,
		Logger:      appCtx.Logger,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	})

	shutdown := func(ctx context.Context) error {
		err := jobs.Shutdown(ctx)
		jobManager.Close()
		server.Close()
		return err
	}
	return server, shutdown, nil
}

type healthAPIService struct {
	resultsDir string
}

func (s *healthAPIService) Check(ctx context.Context) error {
	if s.resultsDir == "" {
		return fmt.Errorf("results directory not configured")
	}
	return nil
}

// Ready reports whether saved reports can be read.
func (s *healthAPIService) Ready(ctx context.Context) error {
	if err := s.Check(ctx); err != nil {
		return err
	}
	info, err := os.Stat(s.resultsDir)
	if err != nil {
		return fmt.Errorf("results directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("results path %s is not a directory", s.resultsDir)
	}
	return nil
}
