package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"finance-tracker/internal/app"
	"finance-tracker/internal/observability"
)

func main() {
	runtime, err := app.Build(app.Options{LoadDotEnv: true})
	if err != nil {
		observability.NewLogger().Error("bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger := runtime.Logger

	srv := &http.Server{
		Addr:              runtime.Config.Addr(),
		Handler:           runtime.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": srv.Addr, "env": runtime.Config.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-done:
		logger.Info("server_shutdown", nil)
	case err := <-serverErr:
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_forced_shutdown", map[string]any{"error": err.Error()})
		exitCode = 1
	}
	if err := runtime.Close(); err != nil {
		logger.Error("close_failed", map[string]any{"error": err.Error()})
		exitCode = 1
	}

	os.Exit(exitCode)
}
