package reconciliation

import (
	"context"
	"errors"
	"sync"
	"time"

	"packhouse-backend/internal/apperr"

	"github.com/bsm/redislock"
)

var errRunInProgress = apperr.Conflict("run_in_progress", "a reconciliation run is already in progress for this enterprise")

// Locker serializes runs per key. The returned func releases the lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// RedisLocker holds run locks in redis so runs are exclusive across processes.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redislock.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, errRunInProgress
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// LocalLocker is the in-process fallback when redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, errRunInProgress
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, nil
}
