package cache

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to signal
// "not found" without caching a zero value.
type Invoker[T any] func(ctx context.Context) (T, bool, error)

type fetchResult[T any] struct {
	val   T
	found bool
}

// Fetch is a read-through helper. It returns the cached value for key when
// there is one. Otherwise it calls invoke, caches a found result with the TTL
// for dataType and returns it. Concurrent misses on the same key share a
// single invoke call.
//
// Errors from invoke and payloads that cannot be converted to T are
// returned. A failed cache write after a successful invoke is logged and
// the value is still returned.
func Fetch[T any](ctx context.Context, s *Store, key Key, dataType DataType, invoke Invoker[T]) (bool, T, error) {
	var zero T
	if key.IsZero() {
		return false, zero, ErrInvalidKey
	}
	found, val, err := Get[T](ctx, s, key)
	if err != nil {
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	v, err, _ := s.flight.Do(key.String(), func() (interface{}, error) {
		val, ok, err := invoke(ctx)
		if err != nil || !ok {
			return fetchResult[T]{val: val, found: false}, err
		}
		if err := s.SetByType(ctx, key, val, dataType); err != nil {
			s.log.Warn("fetch: caching %s failed: %s", key, err)
		}
		return fetchResult[T]{val: val, found: true}, nil
	})
	if err != nil {
		return false, zero, err
	}
	res, ok := v.(fetchResult[T])
	if !ok {
		// a concurrent Fetch of the same key asked for a different type
		return false, zero, errors.Wrapf(ErrTypeMismatch, "concurrent fetch of %s produced %T", key, v)
	}
	if !res.found {
		return false, zero, nil
	}
	return true, res.val, nil
}
