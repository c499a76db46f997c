package store

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/wBanano/wban-backend/pkg/app/errors"
)

const (
	lockPrefix = "locks:"

	// Acquisition budget mirrors the redlock settings the bridge has always
	// run with: 10 attempts, 200ms apart, with up to 200ms of jitter.
	lockRetryCount  = 10
	lockRetryDelay  = 200 * time.Millisecond
	lockRetryJitter = 200 * time.Millisecond
)

// releaseScript deletes the lock only if we still hold it, so an expired
// lock re-acquired by another worker is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a TTL-bounded distributed mutex over a single redis key
type Lock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// NewLock creates a lock for the named resource. The lock is not acquired.
func (s *Store) NewLock(name string, ttl time.Duration) *Lock {
	return &Lock{
		client: s.client,
		key:    lockPrefix + name,
		value:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire tries to take the lock within the bounded retry budget. It returns
// a ResourceLocked error when the budget is exhausted rather than blocking.
func (l *Lock) Acquire(ctx context.Context) error {
	for attempt := 0; attempt < lockRetryCount; attempt++ {
		ok, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
		if err != nil {
			return apperrors.GeneralError(err, "lock acquire failed")
		}
		if ok {
			return nil
		}

		delay := lockRetryDelay + time.Duration(rand.Int63n(int64(lockRetryJitter)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return apperrors.ResourceLockedError(nil, l.key)
}

// Release frees the lock if we still hold it
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Err(); err != nil && err != redis.Nil {
		return apperrors.GeneralError(err, "lock release failed")
	}
	return nil
}

// WithLock runs fn while holding the named lock. The TTL bounds the hold
// time should the process die mid-critical-section.
func (s *Store) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock := s.NewLock(name, ttl)
	if err := lock.Acquire(ctx); err != nil {
		return err
	}
	defer lock.Release(context.WithoutCancel(ctx))
	return fn(ctx)
}
