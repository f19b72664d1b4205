package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbraams/barkeep-backend/api/controllers"
	"github.com/tbraams/barkeep-backend/api/routes"
	"github.com/tbraams/barkeep-backend/internal/authz"
	"github.com/tbraams/barkeep-backend/internal/containers"
	"github.com/tbraams/barkeep-backend/internal/deposits"
	"github.com/tbraams/barkeep-backend/internal/fines"
	"github.com/tbraams/barkeep-backend/internal/invoices"
	"github.com/tbraams/barkeep-backend/internal/ledger"
	"github.com/tbraams/barkeep-backend/internal/notifier"
	"github.com/tbraams/barkeep-backend/internal/payouts"
	"github.com/tbraams/barkeep-backend/internal/pointsofsale"
	"github.com/tbraams/barkeep-backend/internal/products"
	"github.com/tbraams/barkeep-backend/internal/users"
	"github.com/tbraams/barkeep-backend/pkg/config"
	"github.com/tbraams/barkeep-backend/pkg/db"
	"github.com/tbraams/barkeep-backend/pkg/logger"
	"github.com/tbraams/barkeep-backend/pkg/metrics"
	"github.com/tbraams/barkeep-backend/pkg/migrate"
	"github.com/tbraams/barkeep-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	userRepo := users.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	containerRepo := containers.NewRepository(conn)
	posRepo := pointsofsale.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	ledgerService, err := ledger.NewService(ledgerRepo, dbClient, userRepo, posRepo, containerRepo, productRepo, cfg.Ledger, ledgerMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	productService, err := products.NewService(productRepo, dbClient, userRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	containerService, err := containers.NewService(containerRepo, dbClient, userRepo, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create container service", err)
		os.Exit(1)
	}
	posService, err := pointsofsale.NewService(posRepo, dbClient, userRepo, containerRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create point of sale service", err)
		os.Exit(1)
	}
	fineService, err := fines.NewService(
		fines.NewRepository(conn), dbClient, userRepo, ledgerRepo,
		notifier.NewLogNotifier(logg, cfg.Mail), cfg.Ledger, ledgerMetrics, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create fine service", err)
		os.Exit(1)
	}
	depositService, err := deposits.NewService(deposits.NewRepository(conn), dbClient, userRepo, ledgerService, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create deposit service", err)
		os.Exit(1)
	}
	invoiceService, err := invoices.NewService(invoices.NewRepository(conn), dbClient, userRepo, ledgerService, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}
	payoutService, err := payouts.NewService(payouts.NewRepository(conn), dbClient, userRepo, ledgerRepo, cfg.Ledger, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg, logg,
		map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		authz.NewRoleAuthorizer(),
		userRepo,
		productService, containerService, posService,
		ledgerService, fineService, depositService, invoiceService, payoutService,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
