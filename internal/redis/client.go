package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions carries the connection settings the config layer owns.
// Zero timeouts and pool sizes fall back to values safe for the short
// lock-scoped commands this service issues.
type ClientOptions struct {
	Addr      string
	Username  string
	Password  string
	OpTimeout time.Duration // per-command read/write deadline
	PoolSize  int
}

func NewClient(ctx context.Context, opts ClientOptions) (*redis.Client, error) {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 2 * time.Second
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           0,
		ReadTimeout:  opts.OpTimeout,
		WriteTimeout: opts.OpTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
