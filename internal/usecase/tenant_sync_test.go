package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/V4T54L/customer-authz/internal/adapter/metrics"
	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/domain/mocks"
)

// overlapIndex records the maximum number of concurrent pushes.
type overlapIndex struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	pushes   atomic.Int32
}

func (o *overlapIndex) PutRole(ctx context.Context, role string, doc domain.RoleDocument) error {
	n := o.inFlight.Add(1)
	defer o.inFlight.Add(-1)
	for {
		cur := o.maxSeen.Load()
		if n <= cur || o.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	o.pushes.Add(1)
	return nil
}

func TestTenantSyncUseCase_Resync(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Pushes names plus the admin tenant", func(t *testing.T) {
		repo := &mocks.MockCustomerRepository{Customers: []domain.Customer{{ID: 1, Name: "acme"}, {ID: 2, Name: "globex"}}}
		index := &mocks.MockTenantIndex{}
		m := metrics.NewAuthzMetrics(prometheus.NewRegistry())
		uc := NewTenantSyncUseCase(repo, index, NewLocalLocker(), "lagoonadmin", logger, m)

		mapping, err := uc.Resync(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(mapping) != 3 || mapping["acme"] != domain.AccessReadWrite || mapping["globex"] != domain.AccessReadWrite || mapping[domain.AdminTenant] != domain.AccessReadWrite {
			t.Errorf("unexpected mapping %v", mapping)
		}
		doc := index.Pushes[0].Doc
		if len(doc.Cluster) != 1 || doc.Cluster[0] != "UNLIMITED" {
			t.Errorf("unexpected cluster grants %v", doc.Cluster)
		}
		if got := doc.Indices["*"]["*"]; len(got) != 1 || got[0] != "UNLIMITED" {
			t.Errorf("unexpected index grants %v", doc.Indices)
		}
		if got := testutil.ToFloat64(m.Tenants); got != 3 {
			t.Errorf("expected tenants gauge 3, got %v", got)
		}
	})

	t.Run("Identical state yields identical documents", func(t *testing.T) {
		repo := &mocks.MockCustomerRepository{Customers: []domain.Customer{{ID: 1, Name: "acme"}}}
		index := &mocks.MockTenantIndex{}
		uc := NewTenantSyncUseCase(repo, index, NewLocalLocker(), "", logger, nil)

		for i := 0; i < 2; i++ {
			if _, err := uc.Resync(context.Background()); err != nil {
				t.Fatalf("resync %d: %v", i, err)
			}
		}
		a, b := index.Pushes[0].Doc.Tenants, index.Pushes[1].Doc.Tenants
		if len(a) != len(b) || a["acme"] != b["acme"] {
			t.Errorf("resync is not idempotent: %v vs %v", a, b)
		}
	})

	t.Run("Read failure is a store error", func(t *testing.T) {
		repo := &mocks.MockCustomerRepository{NamesErr: errors.New("db down")}
		index := &mocks.MockTenantIndex{}
		m := metrics.NewAuthzMetrics(prometheus.NewRegistry())
		uc := NewTenantSyncUseCase(repo, index, NewLocalLocker(), "", logger, m)

		_, err := uc.Resync(context.Background())
		if !errors.Is(err, domain.ErrStore) {
			t.Fatalf("expected ErrStore, got %v", err)
		}
		if len(index.Pushes) != 0 {
			t.Error("nothing should be pushed")
		}
		if got := testutil.ToFloat64(m.ResyncFailures.WithLabelValues("read")); got != 1 {
			t.Errorf("expected 1 read failure, got %v", got)
		}
	})

	t.Run("Push failure is a sync error", func(t *testing.T) {
		repo := &mocks.MockCustomerRepository{}
		index := &mocks.MockTenantIndex{PutErr: errors.New("status 503")}
		uc := NewTenantSyncUseCase(repo, index, NewLocalLocker(), "", logger, nil)

		_, err := uc.Resync(context.Background())
		if domain.KindOf(err) != domain.KindSync {
			t.Fatalf("expected sync kind, got %v", err)
		}
	})

	t.Run("Lock timeout is a sync error", func(t *testing.T) {
		locker := NewLocalLocker()
		unlock, err := locker.Lock(context.Background())
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		defer unlock()

		repo := &mocks.MockCustomerRepository{}
		uc := NewTenantSyncUseCase(repo, &mocks.MockTenantIndex{}, locker, "", logger, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err = uc.Resync(ctx)
		if !errors.Is(err, domain.ErrSync) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected sync error wrapping the deadline, got %v", err)
		}
		if repo.StoreCalls() != 0 {
			t.Error("names must not be read without the lock")
		}
	})

	t.Run("Concurrent resyncs are serialized", func(t *testing.T) {
		repo := &mocks.MockCustomerRepository{Customers: []domain.Customer{{ID: 1, Name: "acme"}}}
		index := &overlapIndex{}
		uc := NewTenantSyncUseCase(repo, index, NewLocalLocker(), "", logger, nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := uc.Resync(context.Background()); err != nil {
					t.Errorf("resync: %v", err)
				}
			}()
		}
		wg.Wait()

		if index.pushes.Load() != 8 {
			t.Errorf("expected 8 pushes, got %d", index.pushes.Load())
		}
		if index.maxSeen.Load() != 1 {
			t.Errorf("expected at most 1 push in flight, saw %d", index.maxSeen.Load())
		}
	})
}
