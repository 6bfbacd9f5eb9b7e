package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/pkasolver/internal/domain/profile"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// ProfileCache stores profile records as JSON strings. It satisfies
// profile.Cache.
type ProfileCache struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
	jitter float64
}

// CacheOption configures a ProfileCache.
type CacheOption func(*ProfileCache)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *ProfileCache) { c.prefix = prefix }
}

// WithTTL sets the record lifetime. Zero keeps records until evicted.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ProfileCache) { c.ttl = ttl }
}

// WithJitter spreads expiry by up to ±fraction of the TTL.
func WithJitter(fraction float64) CacheOption {
	return func(c *ProfileCache) { c.jitter = fraction }
}

// NewProfileCache builds a cache over client.
func NewProfileCache(client *Client, log logging.Logger, opts ...CacheOption) *ProfileCache {
	c := &ProfileCache{
		client: client,
		logger: logging.OrNop(log),
		prefix: "pkasolver:",
		ttl:    24 * time.Hour,
		jitter: 0.1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ProfileCache) fullKey(key string) string { return c.prefix + key }

func (c *ProfileCache) expiry() time.Duration {
	if c.ttl <= 0 || c.jitter <= 0 {
		return c.ttl
	}
	d := float64(c.ttl) * c.jitter * (rand.Float64()*2 - 1)
	return (c.ttl + time.Duration(d)).Round(time.Second)
}

// Get returns the record under key or profile.ErrNotFound.
func (c *ProfileCache) Get(ctx context.Context, key string) (*profile.Record, error) {
	rdb, err := c.client.live()
	if err != nil {
		return nil, err
	}
	data, err := rdb.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to get from cache")
	}
	var rec profile.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A stale schema is treated as a miss and dropped.
		c.logger.Warn("dropping undecodable cache entry", logging.String("key", key), logging.Err(err))
		_ = rdb.Del(ctx, c.fullKey(key)).Err()
		return nil, profile.ErrNotFound
	}
	return &rec, nil
}

// Set stores r under key.
func (c *ProfileCache) Set(ctx context.Context, key string, r *profile.Record) error {
	rdb, err := c.client.live()
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode profile")
	}
	if err := rdb.Set(ctx, c.fullKey(key), data, c.expiry()).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to set cache")
	}
	return nil
}

// Delete removes keys.
func (c *ProfileCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	rdb, err := c.client.live()
	if err != nil {
		return err
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.fullKey(k)
	}
	if err := rdb.Del(ctx, full...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to delete from cache")
	}
	return nil
}

// Purge deletes every profile key for modelVersion, for use after a model
// rollout. It returns the number of keys removed.
func (c *ProfileCache) Purge(ctx context.Context, modelVersion string) (int64, error) {
	rdb, err := c.client.live()
	if err != nil {
		return 0, err
	}
	pattern := c.fullKey("profile:" + modelVersion + ":*")
	var removed int64
	iter := rdb.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := rdb.Del(ctx, batch...).Result()
		removed += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return removed, errors.Wrap(err, errors.ErrCodeCacheError, "purge")
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, errors.Wrap(err, errors.ErrCodeCacheError, "scan")
	}
	if err := flush(); err != nil {
		return removed, errors.Wrap(err, errors.ErrCodeCacheError, "purge")
	}
	c.logger.Info("profile cache purged", logging.String("model_version", modelVersion), logging.Int64("keys", removed))
	return removed, nil
}

var _ profile.Cache = (*ProfileCache)(nil)

//Personal.AI order the ending
