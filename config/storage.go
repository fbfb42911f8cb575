package config

import (
	"context"

	"github.com/agentuity/storefront-cache/cache"
	"github.com/agentuity/storefront-cache/resilience"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// redisStorage owns the client it was opened with.
type redisStorage struct {
	cache.Storage
	client *redis.Client
}

func (r *redisStorage) Close() error {
	return r.client.Close()
}

// OpenStorage builds the configured persistent tier. The none driver returns
// a nil Storage, which runs the store memory-only. For redis the server is
// pinged first so a bad address fails here rather than on the first read.
func (c *Config) OpenStorage(ctx context.Context) (cache.Storage, error) {
	opts := []cache.Option{
		cache.WithQuota(int64(c.Storage.Quota)),
		cache.WithQueryTimeout(c.Storage.QueryTimeout.Std()),
	}

	var storage cache.Storage
	switch c.Storage.Driver {
	case DriverNone:
		return nil, nil
	case DriverMemory:
		storage = cache.NewMapStorage(opts...)
	case DriverSQLite:
		s, err := cache.NewSQLiteStorage(ctx, c.Storage.Path, opts...)
		if err != nil {
			return nil, err
		}
		storage = s
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Storage.Redis.Address,
			Password: c.Storage.Redis.Password.Reveal(),
			DB:       c.Storage.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, c.Storage.QueryTimeout.Std())
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			client.Close()
			return nil, errors.Wrapf(err, "connect to redis at %s", c.Storage.Redis.Address)
		}
		storage = &redisStorage{Storage: cache.NewRedisStorage(ctx, client, opts...), client: client}
	default:
		return nil, errors.Newf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Storage.Breaker.Enabled {
		cfg := resilience.DefaultCircuitBreakerConfig()
		if c.Storage.Breaker.MaxFailures > 0 {
			cfg.MaxFailures = c.Storage.Breaker.MaxFailures
		}
		if c.Storage.Breaker.Timeout > 0 {
			cfg.Timeout = c.Storage.Breaker.Timeout.Std()
		}
		storage = cache.NewGuardedStorage(storage, cfg)
	}
	return storage, nil
}
