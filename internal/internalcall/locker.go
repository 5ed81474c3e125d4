package internalcall

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pbx-engine/pkg/utils"
)

// Locker serializes call setup per user so two simultaneous calls cannot both
// mark the same user busy.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

// RedisLocker backs the locks with Redis SET NX and a compare-and-delete
// release, so a crashed node's locks expire on their own.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return utils.AcquireKeyLock(ctx, l.rdb, key, owner, ttl)
}

func (l *RedisLocker) Release(ctx context.Context, key, owner string) error {
	return utils.ReleaseKeyLock(ctx, l.rdb, key, owner)
}

// MemoryLocker is a single-process locker for tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]string
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]string)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	_ = ctx
	_ = ttl
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[key]; held {
		return false, nil
	}
	l.locks[key] = owner
	return true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key, owner string) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] == owner {
		delete(l.locks, key)
	}
	return nil
}
