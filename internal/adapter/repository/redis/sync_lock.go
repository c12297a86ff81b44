package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultSyncLockKey = "customer-authz:tenant-sync"
	defaultRetryDelay  = 50 * time.Millisecond
	releaseTimeout     = 2 * time.Second
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SyncLock implements domain.SyncLocker across processes with
// SET key token NX PX ttl.
type SyncLock struct {
	client     redis.Cmdable
	key        string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewSyncLock creates a new Redis-backed lock. ttl bounds how long a crashed
// holder can block others and must exceed the slowest expected resync.
func NewSyncLock(client redis.Cmdable, key string, ttl time.Duration, logger *slog.Logger) (*SyncLock, error) {
	if ttl <= 0 {
		return nil, errors.New("sync lock ttl must be positive")
	}
	if key == "" {
		key = DefaultSyncLockKey
	}
	return &SyncLock{
		client:     client,
		key:        key,
		ttl:        ttl,
		retryDelay: defaultRetryDelay,
		logger:     logger.With("component", "redis_sync_lock"),
	}, nil
}

// Lock polls until the key is acquired or ctx is done.
func (l *SyncLock) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", l.key, ctx.Err())
		}
	}
}

func (l *SyncLock) release(token string) {
	// The caller's ctx may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	released, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		l.logger.Error("failed to release sync lock", "key", l.key, "error", err)
		return
	}
	if released == 0 {
		l.logger.Warn("sync lock expired before release", "key", l.key, "ttl", l.ttl)
	}
}
