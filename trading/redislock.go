package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Udokachinonso/batchbalance-pro/generic"
)

// RedisLockConfig tunes RedisLocker.
type RedisLockConfig struct {
	// TTL bounds how long a crashed holder can block a customer.
	TTL time.Duration
	// RetryInterval and MaxRetries control how long Lock waits for a busy key.
	RetryInterval time.Duration
	MaxRetries    int
}

func DefaultRedisLockConfig() RedisLockConfig {
	return RedisLockConfig{
		TTL:           30 * time.Second,
		RetryInterval: 100 * time.Millisecond,
		MaxRetries:    50,
	}
}

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
type RedisLocker struct {
	client *redislock.Client
	cfg    RedisLockConfig
	logger *zap.Logger
}

func NewRedisLocker(rdb *redis.Client, cfg RedisLockConfig, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultRedisLockConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaults.RetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		cfg:    cfg,
		logger: logger.Named("redislock"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.cfg.TTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryInterval), l.cfg.MaxRetries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", generic.ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must run even when the request context is already gone.
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
