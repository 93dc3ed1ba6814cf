package main

import (
	"context"
	"flag"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"
)

func main() {
	once := flag.Bool("once", false, "run one materialization pass and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRecurring)
	logger.Info("Starting recurring-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	res, _ := cli.InitBackend(context.Background(), logger, cfg)
	if res.Events == nil {
		logger.Info("AMQP disabled - materialized transactions will not be mirrored")
	}

	// No dashboard cache lives in this process, so there is nothing to invalidate.
	processor := services.NewRecurringProcessor(res.Store, cfg.RecurringMaxOccurrences, res.Publisher(), nil, logger)
	job := services.RecurringJob{Processor: processor, Today: core.Today}

	if *once {
		summary, err := processor.ProcessAll(context.Background(), core.Today())
		logger.Info("Materialization pass complete",
			"users", summary.Users,
			log.FieldInserted, summary.Inserted,
			log.FieldUpdated, summary.Updated,
			"failed", summary.Failed)
		if cerr := res.Cleanup(); cerr != nil {
			logger.Error("Backend cleanup error", log.FieldError, cerr)
		}
		if err != nil {
			logger.Error("Materialization pass failed", log.FieldError, err)
			os.Exit(1)
		}
		return
	}

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	sched := scheduler.New(jobCtx, logger)
	if err := sched.AddJob(cfg.RecurringSchedule, job); err != nil {
		logger.Error("Invalid recurring schedule", log.FieldError, err, "schedule", cfg.RecurringSchedule)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		// A pass in flight sees its context cancelled; Stop waits for it before the store closes.
		cancelJobs()
		sched.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Running initial recurring materialization")
	if err := sched.RunNow(job); err != nil {
		logger.Error("Initial materialization failed", log.FieldError, err)
	}

	sched.Start()
	logger.Info("Recurring materialization scheduled", "schedule", cfg.RecurringSchedule)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker stopped")
}
