// Package cli provides the tracker's startup helpers, component wiring and
// commands.
package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets
// it as the default logger. Logs go to out, keeping stdout for command output.
func SetupLogger(level string, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stderr
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as the file is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment. The config
// is returned even when invalid so the caller can still set up logging.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// GracefulShutdown returns a context canceled on SIGINT or SIGTERM. stop
// releases the signal handler.
func GracefulShutdown(logger *log.Logger) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// ServeMetrics exposes /metrics on addr until the returned shutdown function
// is called.
func ServeMetrics(addr string, logger *log.Logger) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", log.FieldError, err.Error())
		}
	}()
	return srv.Shutdown
}
