package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting fintrack-worker")

	cfg := cli.MustLoadConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required: the worker consumes ledger events")
		os.Exit(1)
	}
	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required: the worker mirrors the ledger to Google Sheets")
		os.Exit(1)
	}

	res, err := cli.OpenBackend(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	if res.Publisher == nil {
		logger.Error("AMQP broker unreachable", "url_set", cfg.AMQPEnabled())
		_ = res.Cleanup()
		os.Exit(1)
	}

	processor := services.NewMirrorProcessor(res.Ledger, res.Mirror, services.MirrorProcessorConfig{
		PollInterval: cfg.MirrorInterval,
		MaxRetries:   cfg.MirrorMaxRetries,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping mirror processor", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	})

	// Changes made while the worker was down are caught by one startup mirror.
	_ = processor.Notify(ctx, amqp.NewLedgerEvent(amqp.KindLedgerReplaced, 0, 0, 0))

	// The loop outlives ctx so Stop can flush a last pending change.
	if err := processor.Start(context.Background()); err != nil {
		logger.Error("Failed to start mirror processor", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := res.Publisher.Consume(ctx, processor.Notify)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Event consumption stopped", log.FieldError, err)
		}
	}()

	logger.Info("Worker running",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"interval", cfg.MirrorInterval.String())

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", log.FieldCount, processor.Mirrored())
}
