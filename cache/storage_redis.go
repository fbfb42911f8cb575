package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const redisScanCount = 256

type redisStorage struct {
	client       *redis.Client
	ctx          context.Context
	queryTimeout time.Duration
}

var _ Storage = (*redisStorage)(nil)

// NewRedisStorage returns a Storage backed by Redis.
// The caller owns the redis.Client lifecycle, Close is a no-op on the client.
func NewRedisStorage(ctx context.Context, client *redis.Client, opts ...Option) Storage {
	cfg := applyOptions(opts)
	return &redisStorage{
		client:       client,
		ctx:          ctx,
		queryTimeout: cfg.queryTimeout,
	}
}

func (r *redisStorage) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = r.ctx
	}
	if r.queryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, r.queryTimeout)
}

func (r *redisStorage) classify(err error, op string) error {
	if strings.HasPrefix(err.Error(), "OOM ") {
		return errors.Mark(errors.Wrap(err, op), ErrQuotaExceeded)
	}
	return errors.Mark(errors.Wrap(err, op), ErrStorageUnavailable)
}

func (r *redisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	data, err := r.client.Get(qctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, r.classify(err, "redis get")
	}
	return data, true, nil
}

// Set writes without a Redis TTL. Expiry is carried in the entry itself and
// enforced by the store so every backend behaves the same.
func (r *redisStorage) Set(ctx context.Context, key string, value []byte) error {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Set(qctx, key, value, 0).Err(); err != nil {
		return r.classify(err, "redis set")
	}
	return nil
}

func (r *redisStorage) Delete(ctx context.Context, key string) error {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.client.Del(qctx, key).Err(); err != nil {
		return r.classify(err, "redis del")
	}
	return nil
}

var deleteIfScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *redisStorage) DeleteIf(ctx context.Context, key string, value []byte) (bool, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	n, err := deleteIfScript.Run(qctx, r.client, []string{key}, value).Int()
	if err != nil {
		return false, r.classify(err, "redis delete if")
	}
	return n > 0, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (r *redisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	match := globEscaper.Replace(prefix) + "*"
	var keys []string
	iter := r.client.Scan(qctx, 0, match, redisScanCount).Iterator()
	for iter.Next(qctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, r.classify(err, "redis scan")
	}
	// SCAN may return a key more than once
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Close is a no-op, the caller owns the redis.Client lifecycle.
func (r *redisStorage) Close() error {
	return nil
}
