// Command conti manages the ledger from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"conti/internal/amqp"
	"conti/internal/backend"
	"conti/internal/cli"
	"conti/internal/clock"
	applog "conti/internal/log"
	"conti/internal/recurrence"
	"conti/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	base := cli.SetupLogger(cfg.LogLevel, os.Stderr)
	logger := base.WithComponent(applog.ComponentCLI)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(base.WithComponent(applog.ComponentStorage).Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}

	sysClock, err := clock.NewSystem(cfg.Timezone)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid timezone", applog.FieldError, err)
		os.Exit(1)
	}
	engine := recurrence.NewEngine(
		recurrence.WithLocation(sysClock.Location),
		recurrence.WithLogger(base.WithComponent(applog.ComponentRecurring).Slog()),
	)

	a := &app{
		repo:      res.Repository,
		ledger:    services.NewLedgerService(res.Repository, nil, sysClock.Location),
		processor: services.NewRecurringProcessor(res.Repository, engine, nil),
		clock:     sysClock,
		out:       os.Stdout,
		in:        os.Stdin,
	}

	if len(os.Args) > 1 && os.Args[1] == "watch" && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		a.watcher = client
	}

	// Due templates are applied on every start, like opening the app.
	if _, err := a.processor.ProcessDue(ctx, sysClock.Today()); err != nil {
		logger.ErrorContext(ctx, "Recurring pass failed", applog.FieldError, err)
	}

	runErr := a.run(ctx, os.Args[1:])
	if err := res.Cleanup(); err != nil {
		logger.ErrorContext(ctx, "Failed to close backend", applog.FieldError, err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "error:", runErr)
		os.Exit(1)
	}
}
