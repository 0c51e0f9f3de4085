package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	apphttp "bilancio/internal/http"
	"bilancio/internal/cli"
	"bilancio/internal/docstore"
	"bilancio/internal/docstore/sqlite"
	"bilancio/internal/house"
	"bilancio/internal/identity"
	"bilancio/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	// Optional AMQP client: fans document changes out to other instances.
	var amqpClient *amqp.Client
	var notifier docstore.Notifier
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing standalone", log.FieldError, err)
		} else {
			notifier = amqpClient
			defer amqpClient.Close()
		}
	}

	store := cli.OpenStore(logger, cfg, notifier)
	defer store.Close()

	tokens := identity.NewTokenManager(cfg.JWTSecret, cfg.TokenDuration)
	provider, err := identity.NewLocalProvider(store, tokens)
	if err != nil {
		logger.Error("Failed to initialize identity provider", log.FieldError, err)
		os.Exit(1)
	}
	defer provider.Close()

	var google *identity.GoogleSignIn
	if cfg.GoogleEnabled() {
		google, err = identity.NewGoogleFromEnv(provider)
		if err != nil {
			logger.Warn("Google sign-in unavailable", log.FieldError, err)
			google = nil
		}
	}

	houses := house.NewManager(store)

	srv := apphttp.NewServer(":"+cfg.Port, store, provider, google, houses)
	srv.Handler = log.Middleware(logger)(srv.Handler)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Changes published by other instances drop the local snapshots.
	if amqpClient != nil {
		if invalidator, ok := store.(*sqlite.Store); ok {
			g.Go(func() error {
				return amqpClient.ConsumeChanges(gctx, cli.InvalidateOnChange(invalidator))
			})
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
