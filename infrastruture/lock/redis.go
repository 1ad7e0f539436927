package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const retryDelay = 100 * time.Millisecond

var ErrLockLost = errors.New("lock expired before release")

// RedisLocker hands out redsync mutexes shared by every server instance using the same Redis.
type RedisLocker struct {
	locker *redsync.Redsync
	ttl    time.Duration
	tries  int
}

// NewRedisLocker initializes a RedisLocker whose locks expire after ttlSeconds.
// Lock keeps retrying for up to one ttl before giving up.
func NewRedisLocker(client *redis.Client, ttlSeconds int) *RedisLocker {
	ttl := time.Duration(ttlSeconds) * time.Second
	pool := goredis.NewPool(client)
	return &RedisLocker{
		locker: redsync.New(pool),
		ttl:    ttl,
		tries:  int(ttl/retryDelay) + 1,
	}
}

// Lock blocks until name is held, ctx is done or the retries run out.
func (l *RedisLocker) Lock(ctx context.Context, name string) (func() error, error) {
	mutex := l.locker.NewMutex(name,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(retryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("locking %s: %w", name, err)
	}

	return func() error {
		ok, err := mutex.UnlockContext(context.Background())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrLockLost, name)
		}
		return nil
	}, nil
}
