// Command resync republishes the tenant mapping once. Operators run it after
// a mutation reported a sync failure.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/customer-authz/internal/adapter/metrics"
	"github.com/V4T54L/customer-authz/internal/adapter/repository/postgres"
	redisrepo "github.com/V4T54L/customer-authz/internal/adapter/repository/redis"
	"github.com/V4T54L/customer-authz/internal/adapter/searchguard"
	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/config"
	"github.com/V4T54L/customer-authz/internal/pkg/logger"
	"github.com/V4T54L/customer-authz/internal/usecase"

	_ "github.com/lib/pq"
)

func main() {
	timeout := flag.Duration("timeout", time.Minute, "Overall deadline for the resync")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	// run owns every deferred cleanup so they complete before we exit.
	if err := run(cfg, log, *timeout); err != nil {
		log.Error("resync failed", "kind", domain.KindOf(err).String(), "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("open postgres connection: %w", err)
	}
	defer db.Close()

	var locker domain.SyncLocker = usecase.NewLocalLocker()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		lock, err := redisrepo.NewSyncLock(client, cfg.SyncLockKey, cfg.SyncLockTTL, log)
		if err != nil {
			return fmt.Errorf("initialize sync lock: %w", err)
		}
		locker = lock
	}

	index, err := searchguard.NewClient(searchguard.Options{
		BaseURL:  cfg.SearchGuardURL,
		Username: cfg.SearchGuardUser,
		Password: cfg.SearchGuardPass,
		RPS:      cfg.SearchGuardRPS,
		Timeout:  cfg.SearchGuardTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize searchguard client: %w", err)
	}

	repo := postgres.NewCustomerRepository(db, log)
	sync := usecase.NewTenantSyncUseCase(repo, index, locker, cfg.SearchGuardRole, log, metrics.NewAuthzMetrics(prometheus.NewRegistry()))

	mapping, err := sync.Resync(ctx)
	if err != nil {
		return err
	}
	log.Info("resync complete", "tenants", len(mapping))
	return nil
}
