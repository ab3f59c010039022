// Package cache holds the Redis-backed implementations of the core cache and
// lock interfaces. Redis is optional: callers fall back to core.NopBalanceCache
// and an unlocked snapshot worker when no address is configured.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bsm/redislock"
	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Connect opens a client and checks it with a ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 20,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Open returns the balance cache and compaction locker for addr. An empty addr
// yields core.NopBalanceCache, a nil Locker and a no-op close.
func Open(ctx context.Context, addr string, ttl time.Duration, logger *logrus.Logger) (core.BalanceCache, core.Locker, func() error, error) {
	if addr == "" {
		return core.NopBalanceCache(), nil, func() error { return nil }, nil
	}
	client, err := Connect(ctx, addr)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewBalanceCache(client, ttl, logger), NewLocker(client), client.Close, nil
}

const (
	balanceKeyPrefix    = "gsa:stock:balance:"
	generationKeyPrefix = "gsa:stock:gen:"
)

func balanceKey(productID int) string {
	return balanceKeyPrefix + strconv.Itoa(productID)
}

func generationKey(productID int) string {
	return generationKeyPrefix + strconv.Itoa(productID)
}

// errStaleGeneration aborts a Set whose balance was computed before the latest invalidation.
var errStaleGeneration = errors.New("balance generation changed")

// BalanceCache stores derived stock balances as decimal strings with a TTL.
// Redis errors degrade to cache misses.
type BalanceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *logrus.Logger
}

var _ core.BalanceCache = (*BalanceCache)(nil)

func NewBalanceCache(client redis.UniversalClient, ttl time.Duration, logger *logrus.Logger) *BalanceCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BalanceCache{client: client, ttl: ttl, logger: logger}
}

func (c *BalanceCache) Get(ctx context.Context, productID int) (decimal.Decimal, bool) {
	val, err := c.client.Get(ctx, balanceKey(productID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("product_id", productID).Warn("balance cache read failed")
		}
		return decimal.Zero, false
	}
	qty, err := decimal.NewFromString(val)
	if err != nil {
		c.logger.WithError(err).WithField("product_id", productID).Warn("discarding malformed cached balance")
		c.Invalidate(ctx, productID)
		return decimal.Zero, false
	}
	return qty, true
}

// Generation returns the product's invalidation counter, 0 if it was never
// invalidated. A read error returns -1, which no stored counter matches.
func (c *BalanceCache) Generation(ctx context.Context, productID int) int64 {
	n, err := c.client.Get(ctx, generationKey(productID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.WithError(err).WithField("product_id", productID).Warn("balance generation read failed")
		return -1
	}
	return n
}

// Set stores qty only while the product's generation still equals generation.
// The generation key is watched, so an Invalidate landing between the check and
// the write aborts the transaction.
func (c *BalanceCache) Set(ctx context.Context, productID int, qty decimal.Decimal, generation int64) {
	genKey := generationKey(productID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, balanceKey(productID), qty.String(), c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
	default:
		c.logger.WithError(err).WithField("product_id", productID).Warn("balance cache write failed")
	}
}

// Invalidate advances each product's generation and drops its cached balance.
func (c *BalanceCache) Invalidate(ctx context.Context, productIDs ...int) {
	if len(productIDs) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range productIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Del(ctx, balanceKey(id))
		}
		return nil
	})
	if err != nil {
		c.logger.WithError(err).WithField("product_ids", productIDs).Warn("balance cache invalidation failed")
	}
}

// Locker adapts redislock to core.Locker.
type Locker struct {
	client *redislock.Client
}

var _ core.Locker = (*Locker)(nil)

func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: redislock.New(client)}
}

func (l *Locker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, core.ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
