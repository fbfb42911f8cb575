// Package cache provides a two tier cache for storefront data: a sharded
// in-process memory tier in front of an optional persistent tier.
//
// # Tiers
//
// The memory tier is a map split into shards ([WithShards]) by the xxhash of
// the key, each shard guarded by its own lock. It has no capacity bound;
// entries leave it by expiry, deletion or [Store.Clear].
//
// The persistent tier is any [Storage]. Three backends are provided:
//
//   - [NewMapStorage]: process-local map with an optional byte quota
//     ([WithQuota]). Useful in tests and as a stand-in for a small,
//     capacity-bounded store.
//
//   - [NewSQLiteStorage]: SQLite via [modernc.org/sqlite] (pure Go, no CGO).
//     A file path keeps entries across process restarts; ":memory:" does not.
//     WAL mode is enabled and every query has a timeout ([WithQueryTimeout]).
//
//   - [NewRedisStorage]: Redis via [github.com/redis/go-redis/v9]. Values are
//     plain strings, expiry is enforced by the store rather than by Redis TTLs.
//     The caller owns the [redis.Client].
//
// [NewGuardedStorage] wraps any backend in a circuit breaker so a failing
// backend is skipped quickly instead of slowing every read. A store created
// without storage runs memory-only.
//
// Storage may be shared with unrelated state. The store only reads and
// writes keys beginning with its prefix ([DefaultPrefix] unless changed with
// [WithPrefix]), and treats anything under that prefix that fails to decode
// as corrupted.
//
// # Reads and writes
//
// [Store.Get] and the generic [Get] consult memory first. A miss falls
// through to storage; a live storage hit is promoted into memory with the
// memory TTL ([DefaultMemoryTTL]), whatever TTL the stored entry had.
// Expired or undecodable storage entries are deleted on the way.
//
//	found, products, err := cache.Get[[]Product](ctx, store, cache.TenantProducts("42"))
//
// [Store.Set] writes both tiers. If the storage write fails, for example
// with [ErrQuotaExceeded], the value stays cached in memory, the failure is
// logged and counted in [Metrics.PersistFailures], and Set still succeeds.
// [Store.SetByType] picks the TTL from a [DataType]: chat data gets the
// memory TTL, everything else [DefaultTTL].
//
// [Fetch] is a read-through helper. Concurrent misses for the same key share
// one call to the [Invoker]:
//
//	found, cfg, err := cache.Fetch(ctx, store, cache.TenantConfig(id), cache.DataTenant,
//	    func(ctx context.Context) (Config, bool, error) {
//	        return api.LoadConfig(ctx, id)
//	    },
//	)
//
// # Keys
//
// A [Key] is built by the namespace constructors ([TenantBootstrap],
// [UserAuth], [APIResponse] and friends) or validated by [ParseKey].
// Identifier segments are escaped, so an id containing ":" cannot reach into
// another key's namespace. [Store.ClearTenant] relies on this: it removes
// keys equal to "tenant:<id>" or starting with "tenant:<id>:", so clearing
// tenant "1" never touches tenant "12".
//
// # Persisted format
//
// [JSONCodec], the default, stores {"data":...,"expires":ms,"created":ms}.
// [MsgpackCodec] stores the same fields as msgpack. Payloads read back from
// storage stay encoded until [Get] decodes them into the requested type.
//
// # Expiry
//
// Reads evict expired entries lazily. [Store.Start] additionally runs
// [Store.Sweep] on a cron schedule ([DefaultSweepSchedule], hourly) to remove
// entries that are never read again. Sweeps never overlap, and [Store.Close]
// waits for a running sweep before closing the storage.
package cache
