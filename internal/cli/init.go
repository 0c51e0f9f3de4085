// Package cli holds the initialization shared by cmd/bilancio and
// cmd/bilancio-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/amqp"
	"bilancio/internal/config"
	"bilancio/internal/docstore"
	"bilancio/internal/docstore/memory"
	"bilancio/internal/docstore/sqlite"
	"bilancio/internal/log"
)

// LoadEnvFile loads a .env file for local development. Missing files are
// fine in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from configuration and installs it
// as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration, exiting on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.New(log.Config{}).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the configured document store backend. notifier may be nil.
func OpenStore(logger *log.Logger, cfg *config.Config, notifier docstore.Notifier) docstore.Store {
	switch cfg.DataBackend {
	case "sqlite":
		store, err := sqlite.New(cfg.SQLiteDBPath, notifier)
		if err != nil {
			logger.Error("Failed to open SQLite store", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		return store
	default:
		return memory.New()
	}
}

// InvalidateOnChange adapts a store's snapshot invalidation to the AMQP
// change consumer callback.
func InvalidateOnChange(inv interface{ Invalidate(collection string) }) func(*amqp.CollectionChangedMessage) error {
	return func(m *amqp.CollectionChangedMessage) error {
		inv.Invalidate(m.Collection)
		return nil
	}
}

// GracefulShutdown cancels the returned context on SIGINT/SIGTERM and runs
// cleanup before signalling done.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup()
		}
		cancel()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-time.After(2 * time.Second):
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}
