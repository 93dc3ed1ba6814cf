package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

func main() {
	reconcileUser := flag.String("reconcile-user", "", "append every unmirrored transaction of this user and exit")
	from := flag.String("from", "", "reconcile transactions on or after this date (yyyy-MM-dd)")
	to := flag.String("to", "", "reconcile transactions on or before this date (yyyy-MM-dd)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting sync-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	res, bcfg := cli.InitBackend(ctx, logger, cfg)

	mirror, err := backend.NewFactory(logger).CreateMirror(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger mirror", log.FieldError, err)
		os.Exit(1)
	}
	sw := worker.NewSyncWorker(res.Store, mirror, cfg.SyncBatchSize, logger)

	if *reconcileUser != "" {
		os.Exit(reconcile(ctx, logger, sw, res, *reconcileUser, *from, *to))
	}

	if res.Events == nil {
		logger.Error("AMQP is required to consume ledger events; set AMQP_URL or use -reconcile-user")
		_ = res.Cleanup()
		os.Exit(1)
	}

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := sw.Run(consumeCtx, res.Events); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Consumer exited", log.FieldError, err)
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		stopConsuming()
		select {
		case <-stopped:
		case <-ctx.Done():
			logger.Warn("Consumer did not stop before the shutdown deadline")
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Sync-worker started",
		"queue", cfg.AMQPQueue,
		"batch_size", cfg.SyncBatchSize,
		"sheets", cfg.SheetsEnabled())
	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Sync-worker stopped")
}

// reconcile appends batches of missing rows until a pass writes nothing. It returns the exit code.
func reconcile(ctx context.Context, logger *log.Logger, sw *worker.SyncWorker, res *backend.BackendResult, userID, from, to string) int {
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	filter := storage.TransactionFilter{}
	for _, p := range []struct {
		raw  string
		dst  *core.Date
		name string
	}{{from, &filter.From, "from"}, {to, &filter.To, "to"}} {
		if p.raw == "" {
			continue
		}
		d, err := core.ParseDate(p.raw)
		if err != nil {
			logger.Error("Invalid reconcile date", "flag", p.name, log.FieldError, err)
			return 2
		}
		*p.dst = d
	}

	total := 0
	for {
		n, err := sw.ReconcileUser(ctx, userID, filter)
		if err != nil {
			logger.Error("Reconcile failed", log.FieldUserID, userID, log.FieldError, err, "appended", total)
			return 1
		}
		total += n
		if n == 0 {
			break
		}
	}
	logger.Info("Reconcile complete", log.FieldUserID, userID, "appended", total)
	return 0
}
