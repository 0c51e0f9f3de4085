package main

import (
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/docstore"
	"bilancio/internal/log"
	"bilancio/internal/recurring"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentRecurring)

	logger.Info("Starting bilancio-worker")

	var notifier docstore.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, web instances will not see changes live", log.FieldError, err)
		} else {
			notifier = amqpClient
			defer amqpClient.Close()
		}
	}

	store := cli.OpenStore(logger, cfg, notifier)
	defer store.Close()

	processor := recurring.NewProcessor(store)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval, "sqlite_db", cfg.SQLiteDBPath)

	// First sweep on startup, then on the interval.
	if count, err := processor.ProcessAll(ctx, time.Now()); err != nil {
		logger.Error("Initial sweep failed", log.FieldError, err)
	} else {
		logger.Info("Initial sweep complete", "transactions_created", count)
	}

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			<-done
			logger.Info("Worker stopped gracefully")
			return
		case now := <-ticker.C:
			count, err := processor.ProcessAll(ctx, now)
			if err != nil {
				logger.Error("Sweep failed", log.FieldError, err)
				continue
			}
			logger.Info("Sweep complete",
				"transactions_created", count,
				"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
		}
	}
}
