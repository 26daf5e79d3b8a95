package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("assignment lock not acquired")

// Locker guards the critical section of a doctor/date/time assignment so
// two staff members racing for the same slot serialize on one key.
type Locker interface {
	WithAssignmentLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type redisAssignmentLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAssignmentLocker creates a locker backed by a per-key SetNX.
func NewRedisAssignmentLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisAssignmentLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisAssignmentLocker) WithAssignmentLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := "lock:assign:" + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire assignment lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, redisKey, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisAssignmentLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release assignment lock: %w", err)
	}
	return nil
}
