package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/customer-authz/internal/adapter/api"
	"github.com/V4T54L/customer-authz/internal/adapter/api/handler"
	"github.com/V4T54L/customer-authz/internal/adapter/metrics"
	"github.com/V4T54L/customer-authz/internal/adapter/pii"
	"github.com/V4T54L/customer-authz/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/customer-authz/internal/adapter/repository/redis"
	"github.com/V4T54L/customer-authz/internal/adapter/searchguard"
	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/config"
	"github.com/V4T54L/customer-authz/internal/pkg/logger"
	"github.com/V4T54L/customer-authz/internal/usecase"

	_ "github.com/lib/pq" // Keep for postgres driver
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel)
	slog.SetDefault(logger)

	m := metrics.NewAuthzMetrics(prometheus.DefaultRegisterer)

	// --- Start Metrics Server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    cfg.MetricsServerAddr,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to open postgres connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	customerRepo := postgres.NewCustomerRepository(db, logger)
	if err := customerRepo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// --- Resync Serialization ---
	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sync lock", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	// --- Authorization Index ---
	index, err := searchguard.NewClient(searchguard.Options{
		BaseURL:  cfg.SearchGuardURL,
		Username: cfg.SearchGuardUser,
		Password: cfg.SearchGuardPass,
		RPS:      cfg.SearchGuardRPS,
		Timeout:  cfg.SearchGuardTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize searchguard client", "error", err)
		os.Exit(1)
	}

	// --- Use Cases ---
	tenantSync := usecase.NewTenantSyncUseCase(customerRepo, index, locker, cfg.SearchGuardRole, logger, m)
	customerUseCase := usecase.NewCustomerUseCase(customerRepo, usecase.NewAccessPolicy(), tenantSync, logger, m)

	// Converge the index with whatever the store holds before serving.
	if _, err := tenantSync.Resync(ctx); err != nil {
		logger.Warn("startup resync failed, index may be stale", "error", err)
	}

	// --- API Server ---
	redactor := pii.NewRedactor(cfg.PIIRedactionFields, logger)
	customerHandler := handler.NewCustomerHandler(customerUseCase, redactor, logger)
	router := api.NewRouter(cfg.JWTSecret, cfg.RequestTimeout, customerHandler, logger)

	apiServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting api server", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}

// newLocker returns a Redis lock shared by every replica when REDIS_ADDR is
// set, and an in-process lock otherwise.
func newLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.SyncLocker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set, serializing resyncs in-process only")
		return usecase.NewLocalLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	lock, err := redisrepo.NewSyncLock(client, cfg.SyncLockKey, cfg.SyncLockTTL, logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return lock, func() { client.Close() }, nil
}
