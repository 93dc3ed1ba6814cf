package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res, _ := cli.InitBackend(context.Background(), logger, cfg)

	cacheManager := cache.NewManager(logger)
	var dashCache cache.Cache[*services.Dashboard]
	if cfg.DashboardCacheSize > 0 {
		lru := cache.NewLRUCache[*services.Dashboard](cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
		cacheManager.Register(lru)
		dashCache = lru
	}
	cacheManager.StartCleanup(time.Minute)

	dashboard := services.NewDashboardService(res.Store, dashCache, logger)
	ledger := services.NewLedgerService(res.Store, res.Publisher(), dashboard, logger)
	recurring := services.NewRecurringProcessor(res.Store, cfg.RecurringMaxOccurrences, res.Publisher(), dashboard, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:    ledger,
		Dashboard: dashboard,
		Recurring: recurring,
	}, apphttp.Options{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:    cfg.RequestTimeout,
		TrustedProxies:    cfg.TrustedProxies,
	}, logger)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Events != nil)
	if err := srv.Start(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
