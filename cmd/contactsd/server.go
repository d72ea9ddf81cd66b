package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the contacts HTTP API server",
	Long: `Start the contactsd HTTP server on the configured port (default :5000).

Startup waits for Postgres to answer its readiness poll, provisions the
NATS mail stream, and starts the email delivery worker. The server shuts
down cleanly on SIGTERM or SIGINT.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.otelProvider != nil {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := app.otelProvider.Shutdown(shutCtx); err != nil {
				slog.Warn("OTEL shutdown error", "err", err)
			}
		}()
	}

	// The database must be reachable before anything else: repositories,
	// the mail worker, and the router all assume a live pool.
	slog.Info("waiting for database", "host", cfg.Postgres.Host)
	if err := app.pg.WaitReady(ctx); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	defer app.pg.Close()

	if err := app.nats.Provision(ctx); err != nil {
		// Mail delivery degrades; the API itself still works.
		slog.Warn("NATS mail stream provisioning failed", "err", err)
	}
	defer app.nats.Close()
	defer app.redis.Close()

	router, worker, err := app.buildRouter(ctx)
	if err != nil {
		return fmt.Errorf("wiring application: %w", err)
	}

	stopWorker, err := worker.Start(ctx)
	if err != nil {
		slog.Warn("mail worker not started", "err", err)
	} else {
		defer stopWorker()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("contactsd server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	app.health.MarkReady()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped cleanly")
	return nil
}
