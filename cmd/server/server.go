package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

// shutdownTimeout bounds the whole graceful shutdown sequence.
const shutdownTimeout = 15 * time.Second

// startHTTPServer serves router until SIGINT or SIGTERM, then shuts down the
// HTTP server and the background workers before releasing connections.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			app.logger.Info("Shutting down server...")
			return server.Shutdown(ctx)
		},
		"background": app.stopBackground,
	})

	select {
	case code := <-wait:
		app.cleanup()
		if code != 0 {
			return fmt.Errorf("shutdown finished with exit code %d", code)
		}
		app.logger.Info("Server shutdown completed")
		return nil

	case err := <-serverErr:
		app.logger.Error("Server failed", "error", err)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := app.stopBackground(shutdownCtx); stopErr != nil {
			app.logger.Error("Background shutdown failed", "error", stopErr)
		}
		app.cleanup()
		return fmt.Errorf("server failed: %w", err)
	}
}
