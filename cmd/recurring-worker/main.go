package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"conti/internal/amqp"
	"conti/internal/backend"
	"conti/internal/cli"
	"conti/internal/clock"
	applog "conti/internal/log"
	"conti/internal/recurrence"
	"conti/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	base := cli.SetupLogger(cfg.LogLevel, os.Stdout)
	logger := base.WithComponent(applog.ComponentWorker)

	logger.InfoContext(context.Background(), "Starting recurring-worker",
		"backend", cfg.DataBackend,
		"timezone", cfg.Timezone,
		"interval", cfg.RecurringInterval)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(context.Background(), "Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(base.WithComponent(applog.ComponentStorage).Slog()).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.ErrorContext(context.Background(), "Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Cleanup()

	// AMQP is optional: without a broker the worker only persists.
	var notifier services.Notifier
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(context.Background(), "Failed to initialize AMQP client, continuing without notifications", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			notifier = amqpClient
			logger.InfoContext(context.Background(), "AMQP client initialized",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	sysClock, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		logger.ErrorContext(context.Background(), "Invalid timezone", applog.FieldError, err)
		os.Exit(1)
	}
	engine := recurrence.NewEngine(
		recurrence.WithLocation(sysClock.Location),
		recurrence.WithLogger(base.WithComponent(applog.ComponentRecurring).Slog()),
	)
	processor := services.NewRecurringProcessor(res.Repository, engine, notifier)

	if *once {
		today := sysClock.Today()
		result, err := processor.ProcessDue(context.Background(), today)
		if err != nil {
			logger.ErrorContext(context.Background(), "Recurring pass failed", applog.FieldError, err)
			os.Exit(1)
		}
		logger.InfoContext(context.Background(), "Recurring pass complete",
			applog.FieldToday, today.String(),
			applog.FieldCreated, len(result.New),
			applog.FieldSkipped, len(result.Skipped))
		return
	}

	ctx, cancel := cli.GracefulShutdown(logger, 30*time.Second, nil)
	defer cancel()

	scheduler := services.NewScheduler(processor, sysClock, services.SchedulerConfig{
		Interval: cfg.RecurringInterval,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(context.Background(), "Recurring-worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.InfoContext(context.Background(), "Recurring-worker shutdown complete")
}
