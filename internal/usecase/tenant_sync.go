package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/customer-authz/internal/adapter/metrics"
	"github.com/V4T54L/customer-authz/internal/domain"
)

// TenantSyncUseCase rebuilds the tenant mapping from the customer table and
// pushes it to the authorization index as a full replacement.
type TenantSyncUseCase struct {
	repo    domain.CustomerRepository
	index   domain.TenantIndex
	locker  domain.SyncLocker
	role    string
	logger  *slog.Logger
	metrics *metrics.AuthzMetrics
}

// NewTenantSyncUseCase creates a new TenantSyncUseCase. m may be nil.
func NewTenantSyncUseCase(
	repo domain.CustomerRepository,
	index domain.TenantIndex,
	locker domain.SyncLocker,
	role string,
	logger *slog.Logger,
	m *metrics.AuthzMetrics,
) *TenantSyncUseCase {
	if role == "" {
		role = domain.DefaultIndexRole
	}
	return &TenantSyncUseCase{
		repo:    repo,
		index:   index,
		locker:  locker,
		role:    role,
		logger:  logger.With("component", "tenant_sync"),
		metrics: m,
	}
}

// Resync pushes the mapping derived from the current customer names. Names
// are read while holding the sync lock so the last resync to finish always
// reflects the latest committed state. It is safe to retry.
func (uc *TenantSyncUseCase) Resync(ctx context.Context) (domain.TenantAccessMapping, error) {
	const op = "tenant.resync"
	start := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.ResyncDuration.Observe(time.Since(start).Seconds())
		}
	}()

	unlock, err := uc.locker.Lock(ctx)
	if err != nil {
		uc.fail("lock")
		uc.logger.Error("failed to acquire sync lock", "error", err)
		return nil, domain.E(domain.KindSync, op, err)
	}
	defer unlock()

	names, err := uc.repo.Names(ctx)
	if err != nil {
		uc.fail("read")
		uc.logger.Error("failed to read customer names", "error", err)
		if domain.KindOf(err) == domain.KindUnknown {
			return nil, domain.E(domain.KindStore, op, err)
		}
		return nil, err
	}

	mapping := domain.BuildTenantMapping(names)
	if err := uc.index.PutRole(ctx, uc.role, domain.NewAdminRoleDocument(mapping)); err != nil {
		uc.fail("push")
		uc.logger.Error("failed to push tenant mapping", "role", uc.role, "tenants", len(mapping), "error", err)
		return nil, domain.E(domain.KindSync, op, err)
	}

	if uc.metrics != nil {
		uc.metrics.Tenants.Set(float64(len(mapping)))
	}
	uc.logger.Info("tenant mapping pushed", "role", uc.role, "tenants", len(mapping))
	return mapping, nil
}

func (uc *TenantSyncUseCase) fail(stage string) {
	if uc.metrics != nil {
		uc.metrics.ResyncFailures.WithLabelValues(stage).Inc()
	}
}

// LocalLocker is an in-process domain.SyncLocker.
type LocalLocker struct {
	ch chan struct{}
}

// NewLocalLocker creates an unlocked LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{ch: make(chan struct{}, 1)}
}

// Lock waits for the lock or for ctx to end.
func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
