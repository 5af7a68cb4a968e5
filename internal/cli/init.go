// Package cli provides common CLI initialization utilities shared by
// cmd/ledger and cmd/ledgerctl.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledger/internal/auth"
	"ledger/internal/backend"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

// SetupLogger initializes structured logging from the configured level and
// format, and sets it as the default logger.
func SetupLogger(cfg *config.Config) *slog.Logger {
	lc := applog.DefaultConfig()
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger.Logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			applog.FieldComponent, applog.ComponentCLI,
			applog.FieldOperation, applog.OpStartup,
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend creates the configured storage engine and change feed.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			applog.FieldComponent, applog.ComponentCLI,
			applog.FieldErrorType, applog.ErrorTypeConfiguration,
			applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend",
			applog.FieldComponent, applog.ComponentCLI,
			applog.FieldOperation, applog.OpStartup,
			applog.FieldError, err,
			"backend", bc.Type)
		os.Exit(1)
	}
	return result
}

// Services bundles the application services over one backend.
type Services struct {
	Auth       *services.AuthService
	Categories *services.CategoryService
	Ledger     *services.LedgerService
	Stats      *services.StatsService
}

// NewServices wires the services to the backend using the configured auth
// settings.
func NewServices(cfg *config.Config, b *backend.BackendResult) *Services {
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn)
	passwords := auth.NewPasswords(cfg.BcryptCost)
	return &Services{
		Auth:       services.NewAuthService(b.Store, tokens, passwords),
		Categories: services.NewCategoryService(b.Store, b.Events),
		Ledger:     services.NewLedgerService(b.Store, b.Events),
		Stats:      services.NewStatsService(b.Store),
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger = logger.With(applog.FieldComponent, applog.ComponentCLI, applog.FieldOperation, applog.OpShutdown)
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
