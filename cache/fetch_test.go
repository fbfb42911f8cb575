package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCachesFoundValues(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))
	var calls atomic.Int32
	invoke := func(ctx context.Context) ([]string, bool, error) {
		calls.Add(1)
		return []string{"hat", "scarf"}, true, nil
	}

	for i := 0; i < 3; i++ {
		found, products, err := Fetch(ctx, s, TenantProducts("1"), DataTenant, invoke)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"hat", "scarf"}, products)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchDoesNotCacheNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var calls atomic.Int32
	invoke := func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		return "", false, nil
	}
	for i := 0; i < 2; i++ {
		found, val, err := Fetch(ctx, s, UserAuth("u1"), DataUser, invoke)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, val)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, s.Stats(ctx).MemoryEntries)
}

func TestFetchPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	boom := errors.New("backend down")
	found, _, err := Fetch(ctx, s, APIResponse("orders"), DataAPI, func(ctx context.Context) (int, bool, error) {
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)

	_, _, err = Fetch(ctx, s, Key{}, DataAPI, func(ctx context.Context) (int, bool, error) {
		return 1, true, nil
	})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestFetchUsesDataTypeTTL(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithMemoryTTL(time.Minute))
	_, _, err := Fetch(ctx, s, ChatMessages("1"), DataChat, func(ctx context.Context) ([]string, bool, error) {
		return []string{"hello"}, true, nil
	})
	require.NoError(t, err)
	keys := s.Keys(ctx)
	require.Len(t, keys, 1)
	assert.LessOrEqual(t, keys[0].TTL, int64(60))
}

func TestFetchCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	invoke := func(ctx context.Context) (string, bool, error) {
		calls.Add(1)
		once.Do(func() { close(started) })
		<-release
		return "value", true, nil
	}

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, v, err := Fetch(ctx, s, TenantConfig("1"), DataTenant, invoke)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "value", v)
	}
}
