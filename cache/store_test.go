package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentuity/storefront-cache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type shop struct {
	Name string `json:"name"`
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	opts = append([]Option{WithLogger(log), WithSweepSchedule("")}, opts...)
	s, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, log
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))

	key := TenantBootstrap("42")
	require.NoError(t, s.Set(ctx, key, shop{Name: "Shop"}, time.Minute))

	found, val, err := Get[shop](ctx, s, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, shop{Name: "Shop"}, val)

	found, raw := s.Get(ctx, key)
	assert.True(t, found)
	assert.Equal(t, shop{Name: "Shop"}, raw)
}

func TestStoreTenantScenario(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))

	key := TenantBootstrap("42")
	require.NoError(t, s.Set(ctx, key, map[string]any{"name": "Shop"}, 60*time.Second))
	found, val, err := Get[map[string]any](ctx, s, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]any{"name": "Shop"}, val)

	s.ClearTenant(ctx, "42")
	found, _, err = Get[map[string]any](ctx, s, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	storage := NewMapStorage()
	s, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now))

	key := Cart("s1")
	require.NoError(t, s.Set(ctx, key, "x", 10*time.Millisecond))
	found, _ := s.Get(ctx, key)
	assert.True(t, found)

	clock.Advance(10 * time.Millisecond)
	found, _ = s.Get(ctx, key)
	assert.False(t, found)

	// both tiers dropped the dead entry
	assert.Equal(t, Stats{}, s.Stats(ctx))
}

func TestStoreRealClockExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))
	key := Session("s1")
	require.NoError(t, s.Set(ctx, key, "x", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	found, _ := s.Get(ctx, key)
	assert.False(t, found)
}

func TestStorePromotion(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	storage := NewMapStorage()
	writer, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now))
	key := TenantProducts("42")
	require.NoError(t, writer.Set(ctx, key, []string{"hat"}, time.Hour))

	// a fresh store sees the entry in storage only
	reader, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now), WithMemoryTTL(2*time.Hour))
	assert.Equal(t, 0, reader.Stats(ctx).MemoryEntries)

	found, products, err := Get[[]string](ctx, reader, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"hat"}, products)
	assert.Equal(t, 1, reader.Stats(ctx).MemoryEntries)
	assert.Equal(t, int64(1), reader.Metrics().Promotions)

	// the promoted copy is stamped with the memory TTL, not the remaining hour
	clock.Advance(90 * time.Minute)
	found, products, err = Get[[]string](ctx, reader, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"hat"}, products)
	assert.Equal(t, int64(1), reader.Metrics().MemoryHits)
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, log := newTestStore(t, WithStorage(NewMapStorage()))
	require.NoError(t, s.Set(ctx, UserAuth("u1"), "token", 0))
	before := s.Stats(ctx)

	s.Delete(ctx, UserAuth("missing"))
	s.Delete(ctx, Key{})
	assert.Equal(t, before, s.Stats(ctx))
	assert.Empty(t, log.Logs())

	s.Delete(ctx, UserAuth("u1"))
	s.Delete(ctx, UserAuth("u1"))
	assert.Equal(t, Stats{}, s.Stats(ctx))
}

func TestStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))
	require.NoError(t, s.Set(ctx, TenantProducts("A"), "a", 0))
	require.NoError(t, s.Set(ctx, TenantProducts("B"), "b", 0))
	require.NoError(t, s.Set(ctx, TenantProducts("1"), "1", 0))
	require.NoError(t, s.Set(ctx, TenantProducts("12"), "12", 0))

	assert.Equal(t, 2, s.ClearTenant(ctx, "A"), "one entry in each tier")
	found, _ := s.Get(ctx, TenantProducts("A"))
	assert.False(t, found)
	found, val := s.Get(ctx, TenantProducts("B"))
	assert.True(t, found)
	assert.Equal(t, "b", val)

	s.ClearTenant(ctx, "1")
	found, _ = s.Get(ctx, TenantProducts("12"))
	assert.True(t, found, "tenant 1 does not match tenant 12")
}

func TestStoreClearTenantStorageOnly(t *testing.T) {
	ctx := context.Background()
	storage := NewMapStorage()
	writer, _ := newTestStore(t, WithStorage(storage))
	require.NoError(t, writer.Set(ctx, TenantOrders("7"), "o", 0))
	require.NoError(t, writer.Set(ctx, TenantConfig("7"), "c", 0))
	require.NoError(t, writer.Set(ctx, TenantConfig("70"), "c", 0))

	reader, _ := newTestStore(t, WithStorage(storage))
	assert.Equal(t, 2, reader.ClearTenant(ctx, "7"))
	assert.Equal(t, 1, reader.Stats(ctx).StorageEntries)
}

func TestStoreCorruptionTolerance(t *testing.T) {
	ctx := context.Background()
	storage := NewMapStorage()
	s, log := newTestStore(t, WithStorage(storage))

	key := TenantProducts("42")
	require.NoError(t, storage.Set(ctx, DefaultPrefix+key.String(), []byte("{not json")))
	assert.Len(t, s.Keys(ctx), 0, "corrupted entries are not listed")

	found, val, err := Get[[]string](ctx, s, key)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	_, exists, err := storage.Get(ctx, DefaultPrefix+key.String())
	require.NoError(t, err)
	assert.False(t, exists, "malformed slot is removed")
	assert.Equal(t, int64(1), s.Metrics().DecodeErrors)
	assert.Equal(t, 1, log.Count("WARNING", "malformed"))
}

func TestStoreIgnoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	storage := NewMapStorage()
	require.NoError(t, storage.Set(ctx, "theme", []byte("dark")))
	s, _ := newTestStore(t, WithStorage(storage))
	require.NoError(t, s.Set(ctx, Cart("s1"), 1, 0))

	assert.Equal(t, 1, s.Stats(ctx).StorageEntries)
	assert.Equal(t, 2, s.Clear(ctx))
	assert.Equal(t, SweepResult{}, s.Sweep(ctx), "nothing left to sweep")

	val, found, err := storage.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("dark"), val)
}

func TestStoreSweep(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	storage := NewMapStorage()
	s, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now))

	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, s.Set(ctx, TenantOrders(id), id, time.Millisecond))
	}
	require.NoError(t, s.Set(ctx, TenantOrders("keep"), "keep", time.Hour))
	require.NoError(t, storage.Set(ctx, DefaultPrefix+"tenant:bad:orders", []byte("garbage")))
	stats := s.Stats(ctx)
	assert.Equal(t, 4, stats.MemoryEntries)
	assert.Equal(t, 5, stats.StorageEntries)

	clock.Advance(2 * time.Millisecond)
	res := s.Sweep(ctx)
	assert.Equal(t, SweepResult{MemoryRemoved: 3, StorageRemoved: 4}, res)

	stats = s.Stats(ctx)
	assert.Equal(t, 1, stats.MemoryEntries)
	assert.Equal(t, 1, stats.StorageEntries)
	found, _ := s.Get(ctx, TenantOrders("keep"))
	assert.True(t, found)
	assert.Equal(t, int64(1), s.Metrics().Sweeps)
}

func TestStoreStatsAccuracy(t *testing.T) {
	ctx := context.Background()
	storage := NewMapStorage()
	s, _ := newTestStore(t, WithStorage(storage))
	require.NoError(t, s.Set(ctx, TenantConfig("1"), map[string]int{"a": 1}, 0))
	require.NoError(t, s.Set(ctx, APIResponse("products", "page=1"), []int{1, 2, 3}, 0))

	keys, err := storage.Keys(ctx, DefaultPrefix)
	require.NoError(t, err)
	var total int
	for _, k := range keys {
		raw, _, err := storage.Get(ctx, k)
		require.NoError(t, err)
		total += len(raw)
	}
	assert.Equal(t, Stats{MemoryEntries: 2, StorageEntries: len(keys), TotalSize: total}, s.Stats(ctx))
	assert.Len(t, keys, 2)
}

func TestStoreKeys(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	storage := NewMapStorage()
	writer, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now))
	require.NoError(t, writer.Set(ctx, TenantUsers("1"), "stored", 90*time.Second))

	s, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now))
	require.NoError(t, s.Set(ctx, TenantConfig("1"), "both", 90*time.Second))
	clock.Advance(500 * time.Millisecond)

	raw, _, err := storage.Get(ctx, DefaultPrefix+TenantConfig("1").String())
	require.NoError(t, err)
	storedOnly, _, err := storage.Get(ctx, DefaultPrefix+TenantUsers("1").String())
	require.NoError(t, err)

	keys := s.Keys(ctx)
	require.Len(t, keys, 2)
	assert.Equal(t, "tenant:1:config", keys[0].Key)
	assert.Equal(t, TierMemory, keys[0].Tier)
	assert.Equal(t, int64(89), keys[0].TTL)
	require.NotNil(t, keys[0].Size, "size backfilled from storage")
	assert.Equal(t, len(raw), *keys[0].Size)

	assert.Equal(t, "tenant:1:users", keys[1].Key)
	assert.Equal(t, TierStorage, keys[1].Tier)
	assert.Equal(t, int64(89), keys[1].TTL)
	assert.Equal(t, len(storedOnly), *keys[1].Size)

	clock.Advance(time.Hour)
	for _, k := range s.Keys(ctx) {
		assert.Equal(t, int64(0), k.TTL)
	}
}

func TestStoreSetByType(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s, _ := newTestStore(t, WithClock(clock.Now), WithMemoryTTL(time.Hour), WithDefaultTTL(48*time.Hour))

	require.NoError(t, s.SetByType(ctx, ChatMessages("1"), []string{"hi"}, DataChat))
	require.NoError(t, s.SetByType(ctx, Session("s1"), "x", DataSession))
	require.NoError(t, s.SetByType(ctx, TenantConfig("1"), "x", DataTenant))

	ttls := map[string]int64{}
	for _, k := range s.Keys(ctx) {
		ttls[k.Key] = k.TTL
	}
	assert.Equal(t, int64(3600), ttls["chat:1:messages"])
	assert.Equal(t, int64(48*3600), ttls["session:s1"])
	assert.Equal(t, int64(48*3600), ttls["tenant:1:config"])

	dt, err := ParseDataType("Chat")
	require.NoError(t, err)
	assert.Equal(t, DataChat, dt)
	_, err = ParseDataType("forever")
	assert.Error(t, err)
}

func TestStoreQuotaExceededKeepsMemoryCopy(t *testing.T) {
	ctx := context.Background()
	s, log := newTestStore(t, WithStorage(NewMapStorage(WithQuota(16))))

	key := APIResponse("catalog")
	require.NoError(t, s.Set(ctx, key, "a payload far larger than the quota", 0))
	found, val := s.Get(ctx, key)
	assert.True(t, found)
	assert.Equal(t, "a payload far larger than the quota", val)

	assert.Equal(t, Stats{MemoryEntries: 1}, s.Stats(ctx))
	assert.Equal(t, int64(1), s.Metrics().PersistFailures)
	assert.Equal(t, 1, log.Count("WARNING", "storage full"))
}

func TestStoreStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	failing := &failingStorage{err: ErrStorageUnavailable}
	s, log := newTestStore(t, WithStorage(failing))

	require.NoError(t, s.Set(ctx, Cart("s1"), 3, 0))
	found, val := s.Get(ctx, Cart("s1"))
	assert.True(t, found)
	assert.Equal(t, 3, val)

	found, _ = s.Get(ctx, Cart("s2"))
	assert.False(t, found)
	assert.Equal(t, Stats{MemoryEntries: 1}, s.Stats(ctx))
	assert.NotPanics(t, func() { s.Sweep(ctx) })
	assert.GreaterOrEqual(t, log.Count("WARNING", "failed"), 2)
}

func TestStoreMemoryOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	require.NoError(t, s.Set(ctx, UserPermissions("u"), []string{"admin"}, 0))
	found, perms, err := Get[[]string](ctx, s, UserPermissions("u"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"admin"}, perms)
	assert.Equal(t, Stats{MemoryEntries: 1}, s.Stats(ctx))
	assert.Len(t, s.Keys(ctx), 1)
	assert.Equal(t, 1, s.Clear(ctx))
}

func TestStoreMsgpackCodec(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	storage := NewRedisStorage(ctx, client)
	writer, _ := newTestStore(t, WithStorage(storage), WithCodec(MsgpackCodec))
	require.NoError(t, writer.Set(ctx, Analytics("1", "7d"), map[string]string{"visits": "10"}, 0))

	reader, _ := newTestStore(t, WithStorage(storage), WithCodec(MsgpackCodec))
	found, val, err := Get[map[string]string](ctx, reader, Analytics("1", "7d"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"visits": "10"}, val)
}

func TestStoreSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	storage := newTestSQLite(t)
	writer, _ := newTestStore(t, WithStorage(storage))
	require.NoError(t, writer.Set(ctx, TenantBootstrap("9"), shop{Name: "Nine"}, 0))

	reader, _ := newTestStore(t, WithStorage(storage))
	found, val, err := Get[shop](ctx, reader, TenantBootstrap("9"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Nine", val.Name)
}

func TestStoreTypeMismatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))
	require.NoError(t, s.Set(ctx, Cart("s1"), "not a number", 0))
	_, _, err := Get[int](ctx, s, Cart("s1"))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	fresh, _ := newTestStore(t, WithStorage(s.storage))
	_, _, err = Get[int](ctx, fresh, Cart("s1"))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestStoreSetErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.Set(ctx, Key{}, 1, 0), ErrInvalidKey)
	assert.Error(t, s.Set(ctx, Cart("s1"), func() {}, 0))
	assert.Equal(t, 0, s.Stats(ctx).MemoryEntries, "unencodable payloads are not cached")
}

func TestStoreInvalidateData(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))
	seed := func() {
		for _, k := range []Key{TenantBootstrap("5"), TenantProducts("5"), TenantOrders("5"), TenantConfig("5"), ChatMessages("5")} {
			require.NoError(t, s.Set(ctx, k, k.String(), 0))
		}
	}
	has := func(k Key) bool {
		found, _ := s.Get(ctx, k)
		return found
	}

	seed()
	s.InvalidateData(ctx, "5", InvalidateProducts)
	assert.False(t, has(TenantBootstrap("5")))
	assert.False(t, has(TenantProducts("5")))
	assert.True(t, has(TenantOrders("5")))

	seed()
	s.InvalidateData(ctx, "5", InvalidateChatMessages)
	assert.False(t, has(ChatMessages("5")))
	assert.True(t, has(TenantProducts("5")))

	seed()
	s.InvalidateData(ctx, "5", "reviews")
	assert.False(t, has(TenantBootstrap("5")))
	assert.True(t, has(TenantOrders("5")))

	seed()
	s.InvalidateData(ctx, "5", "")
	assert.False(t, has(TenantOrders("5")))
	assert.False(t, has(TenantConfig("5")))
	assert.True(t, has(ChatMessages("5")), "chat keys are not tenant scoped")
}

func TestStoreNewValidation(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, WithMemoryTTL(0))
	assert.Error(t, err)
	_, err = New(ctx, WithDefaultTTL(-time.Second))
	assert.Error(t, err)
	_, err = New(ctx, WithPrefix(""))
	assert.Error(t, err)
	_, err = New(ctx, WithSweepSchedule("every now and then"))
	assert.Error(t, err)
}

func TestStoreScheduledSweep(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, WithLogger(logger.NewTestLogger()), WithSweepSchedule("@every 1s"))
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")

	require.NoError(t, s.Set(ctx, Cart("s1"), 1, time.Millisecond))
	require.Eventually(t, func() bool {
		return s.Metrics().Sweeps > 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 0, s.Stats(ctx).MemoryEntries)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Start(), ErrClosed)
}

func TestStoreConcurrentTraffic(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, WithStorage(NewMapStorage()))
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := TenantProducts(string(rune('a' + w)))
				_ = s.Set(ctx, key, i, 0)
				s.Get(ctx, key)
				if i%25 == 0 {
					s.Sweep(ctx)
					s.ClearTenant(ctx, string(rune('a'+w)))
				}
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 8, s.Stats(ctx).MemoryEntries)
}

// hookedStorage calls afterGet once a Get has read from the wrapped storage,
// before the result is handed back.
type hookedStorage struct {
	Storage
	afterGet func(key string)
}

func (h *hookedStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, found, err := h.Storage.Get(ctx, key)
	if h.afterGet != nil {
		h.afterGet(key)
	}
	return v, found, err
}

// pauseFirstGet holds the first Get after its read until release is closed.
// read is closed once that Get is holding.
func pauseFirstGet(inner Storage) (s *hookedStorage, read, release chan struct{}) {
	read = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	s = &hookedStorage{Storage: inner, afterGet: func(string) {
		once.Do(func() {
			close(read)
			<-release
		})
	}}
	return s, read, release
}

func TestStoreRemovalDuringPromotion(t *testing.T) {
	key := TenantProducts("42")
	removals := map[string]func(ctx context.Context, s *Store){
		"delete":       func(ctx context.Context, s *Store) { s.Delete(ctx, key) },
		"clear tenant": func(ctx context.Context, s *Store) { s.ClearTenant(ctx, "42") },
		"invalidate":   func(ctx context.Context, s *Store) { s.InvalidateData(ctx, "42", InvalidateProducts) },
		"clear":        func(ctx context.Context, s *Store) { s.Clear(ctx) },
	}
	for name, remove := range removals {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inner := NewMapStorage()
			writer, _ := newTestStore(t, WithStorage(inner))
			require.NoError(t, writer.Set(ctx, key, []string{"hat"}, time.Hour))

			storage, read, release := pauseFirstGet(inner)
			s, _ := newTestStore(t, WithStorage(storage))
			done := make(chan bool)
			go func() {
				found, _ := s.Get(ctx, key)
				done <- found
			}()

			<-read
			remove(ctx, s)
			close(release)
			assert.True(t, <-done, "the read in flight answers with what it read")

			found, _ := s.Get(ctx, key)
			assert.False(t, found, "removed entry must not come back")
			assert.Equal(t, 0, s.Stats(ctx).MemoryEntries)
			assert.Equal(t, int64(0), s.Metrics().Promotions)
		})
	}
}

func TestStoreSetDuringPromotion(t *testing.T) {
	ctx := context.Background()
	key := TenantBootstrap("42")
	inner := NewMapStorage()
	writer, _ := newTestStore(t, WithStorage(inner))
	require.NoError(t, writer.Set(ctx, key, "old", time.Hour))

	storage, read, release := pauseFirstGet(inner)
	s, _ := newTestStore(t, WithStorage(storage))
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Get(ctx, key)
	}()

	<-read
	require.NoError(t, s.Set(ctx, key, "new", time.Hour))
	close(release)
	<-done

	found, val, err := Get[string](ctx, s, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", val)
	assert.Equal(t, int64(0), s.Metrics().Promotions)

	raw, found, err := inner.Get(ctx, DefaultPrefix+key.String())
	require.NoError(t, err)
	require.True(t, found)
	e, err := JSONCodec.Decode(raw)
	require.NoError(t, err)
	ok, stored, err := convert[string](e.Data)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", stored)
}

func TestStoreSweepKeepsRewrittenEntry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	key := TenantBootstrap("42")
	inner := NewMapStorage()
	writer, _ := newTestStore(t, WithStorage(inner), WithClock(clock.Now))
	require.NoError(t, writer.Set(ctx, key, "old", time.Minute))
	clock.Advance(time.Hour)

	var once sync.Once
	storage := &hookedStorage{Storage: inner, afterGet: func(string) {
		// rewritten after the sweep read the expired copy
		once.Do(func() { require.NoError(t, writer.Set(ctx, key, "new", time.Hour)) })
	}}
	s, _ := newTestStore(t, WithStorage(storage), WithClock(clock.Now))

	assert.Equal(t, SweepResult{}, s.Sweep(ctx))
	found, val, err := Get[string](ctx, s, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "new", val)
}
