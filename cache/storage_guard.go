package cache

import (
	"context"

	"github.com/agentuity/storefront-cache/resilience"
	"github.com/cockroachdb/errors"
)

type guardedStorage struct {
	inner   Storage
	breaker *resilience.CircuitBreaker
}

var _ Storage = (*guardedStorage)(nil)

// NewGuardedStorage wraps inner in a circuit breaker. While the breaker is
// open every call fails fast with ErrStorageUnavailable, and the store
// behaves as if it had no persistent tier. Quota errors are not counted as
// failures unless cfg.IsFailure says otherwise.
func NewGuardedStorage(inner Storage, cfg resilience.CircuitBreakerConfig) Storage {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return !errors.Is(err, ErrQuotaExceeded)
		}
	}
	return &guardedStorage{inner: inner, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (g *guardedStorage) do(ctx context.Context, fn func(context.Context) error) error {
	err := g.breaker.Execute(ctx, fn)
	if errors.Is(err, resilience.ErrCircuitBreakerOpen) {
		return errors.Mark(err, ErrStorageUnavailable)
	}
	return err
}

func (g *guardedStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		value, found, err = g.inner.Get(ctx, key)
		return err
	})
	return value, found, err
}

func (g *guardedStorage) Set(ctx context.Context, key string, value []byte) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.inner.Set(ctx, key, value)
	})
}

func (g *guardedStorage) Delete(ctx context.Context, key string) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.inner.Delete(ctx, key)
	})
}

func (g *guardedStorage) DeleteIf(ctx context.Context, key string, value []byte) (bool, error) {
	var removed bool
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		removed, err = g.inner.DeleteIf(ctx, key, value)
		return err
	})
	return removed, err
}

func (g *guardedStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		keys, err = g.inner.Keys(ctx, prefix)
		return err
	})
	return keys, err
}

func (g *guardedStorage) Close() error {
	return g.inner.Close()
}
