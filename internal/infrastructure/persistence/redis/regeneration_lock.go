package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
)

// RegenerationLock serializes quest regeneration per class across instances.
// The database row locks stay authoritative; the lock keeps two teachers
// from racing on the same class and wasting a transaction.
type RegenerationLock struct {
	cache  *Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewRegenerationLock creates a lock with the given TTL.
func NewRegenerationLock(cache *Cache, ttl time.Duration, logger *slog.Logger) *RegenerationLock {
	if ttl <= 0 {
		ttl = TTLRegenerationLock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RegenerationLock{cache: cache, ttl: ttl, logger: logger.With("component", "regeneration_lock")}
}

// Acquire takes the class lock or returns ErrRegenerationLocked.
// The returned release func is safe to call once the lock expired.
func (l *RegenerationLock) Acquire(ctx context.Context, classID string) (func(), error) {
	key := LockKey("regenerate:" + classID)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, shared.WrapError("quest", "Regenerate", shared.ErrServiceUnavailable,
			"regeneration lock unavailable", fmt.Errorf("failed to acquire lock: %w", err))
	}
	if !ok {
		return nil, shared.ErrRegenerationLocked
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := l.cache.DeleteIfEquals(releaseCtx, key, token); err != nil {
			l.logger.Warn("failed to release regeneration lock", "class_id", classID, "error", err)
		}
	}
	return release, nil
}
