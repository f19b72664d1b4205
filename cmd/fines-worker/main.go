package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbraams/barkeep-backend/internal/cron"
	"github.com/tbraams/barkeep-backend/internal/fines"
	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/internal/notifier"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/metrics"
	"github.com/tbraams/barkeep-backend/pkg/migrate"
	"github.com/tbraams/barkeep-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "fines-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "fines-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	fineService, err := fines.NewService(
		fines.NewRepository(conn), dbClient, users.NewRepository(conn), ledger.NewRepository(conn),
		notifier.NewLogNotifier(logg, cfg.Mail), cfg.Ledger,
		metrics.NewLedgerMetrics(prometheus.DefaultRegisterer), logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create fine service", err)
		os.Exit(1)
	}

	warningJob, err := cron.NewFineWarningJob(fineService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fine warning job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(warningJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting fines worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "fines worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "fines worker shutting down gracefully")
}
