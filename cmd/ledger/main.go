package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/cli"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
)

func main() {
	cli.LoadEnvFile()

	// Bootstrap logger until the configured one is available
	logger := cli.SetupLogger(nil)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg)

	b := cli.InitBackend(context.Background(), logger, cfg)
	svc := cli.NewServices(cfg, b)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:       svc.Auth,
		Categories: svc.Categories,
		Ledger:     svc.Ledger,
		Stats:      svc.Stats,
		Ready:      b.Store,
	}, apphttp.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthRateLimit:      cfg.AuthRateLimit,
		StoreTimeout:       cfg.StoreTimeout,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := b.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting ledger server", applog.FieldOperation, applog.OpStartup, "port", cfg.Port, "backend", cfg.DataBackend, "change_feed", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = b.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
