package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/straye-as/purchasing-api/internal/config"
	"go.uber.org/zap"
)

// ErrNotObtained is returned when another holder keeps the lock past the wait budget.
var ErrNotObtained = errors.New("lock is held by another request")

// ReleaseFunc releases an acquired lock. It is safe to call once.
type ReleaseFunc func()

// Locker serialises work on a key across API instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// NopLocker grants every lock immediately. Used when redis is disabled; the
// line item version check still catches concurrent writers.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string) (ReleaseFunc, error) {
	return func() {}, nil
}

// RedisLocker implements Locker with redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

const retryInterval = 100 * time.Millisecond

func NewRedisLocker(rdb redislock.RedisClient, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Key namespaces lock keys by kind, e.g. Key("line_item", id).
func Key(kind string, id fmt.Stringer) string {
	return fmt.Sprintf("lock:%s:%s", kind, id)
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	retries := int(l.wait / retryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), retries),
	}

	lk, err := l.client.Obtain(ctx, key, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func() {
		// the request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
