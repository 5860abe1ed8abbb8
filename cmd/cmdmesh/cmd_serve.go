package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/cmdmesh/metrics"
)

var metricsAddr string

// serveCmd runs the background services
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the project prompt watcher until interrupted",
	Long: `Fires due schedulers every scheduler.tick and keeps project prompts in
sync with the prompt directory. With --metrics-addr (or metrics.addr) the
Prometheus metrics are served under /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg.Scheduler.Enabled = true
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	var collector *metrics.Collector
	if cfg.Metrics.Addr != "" {
		collector = metrics.New()
	}

	mesh, err := newMesh(collector, nil)
	if err != nil {
		return err
	}
	defer mesh.Close()

	if err := mesh.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	var srv *http.Server
	if collector != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		logger.Info("metrics.listening", "addr", cfg.Metrics.Addr)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}
