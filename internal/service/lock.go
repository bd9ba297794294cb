package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrReconciliationInProgress is returned when another run holds the lock.
var ErrReconciliationInProgress = errors.New("reconciliation already in progress")

// Locker serialises batch operations that must not overlap.
type Locker interface {
	// Acquire takes the named lock or returns ErrReconciliationInProgress. The
	// returned function releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
}

// NewLocker returns a redis-backed locker when a client is configured and an
// in-process locker otherwise.
func NewLocker(client *redis.Client) Locker {
	if client == nil {
		return &localLocker{held: make(map[string]struct{})}
	}
	return &redisLocker{client: client}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReconciliationInProgress
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func (l *localLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, ErrReconciliationInProgress
	}
	l.held[key] = struct{}{}
	return func(context.Context) error {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
		return nil
	}, nil
}
