package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/riskprobe/internal/api"
	"github.com/ppiankov/riskprobe/internal/logging"
	"github.com/ppiankov/riskprobe/internal/metrics"
	"github.com/ppiankov/riskprobe/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve exposes the analysis pipeline over HTTP:
  POST /analyze-subject
  POST /analyze-subject/evidence-enhanced
  GET  /evidence-source/stats
  POST /evidence-source/search
  GET  /healthz
  GET  /metrics

Set server.auth_token (RISKPROBE_SERVER_AUTH_TOKEN) to require a bearer token.

Example:
  riskprobe serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	shared.register(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shared.apply(cmd.Flags(), &cfg)
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := logging.New(cfg.Output.Verbose, cfg.Output.JSONLogs)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt, err := pipeline.Build(ctx, cfg, metrics.New(reg), logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	handler := api.NewHandler(rt.Pipeline, rt.Registry, logger)
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewRouter(handler, api.RouterConfig{
			AuthToken: cfg.Server.AuthToken,
			Gatherer:  reg,
			Ready:     rt.Ready,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "✓ riskprobe listening on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintf(os.Stderr, "Shutting down server...\n")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Server exited\n")
	return nil
}
