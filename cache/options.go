package cache

import (
	"time"

	"github.com/agentuity/storefront-cache/logger"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPrefix is prepended to every key written to the persistent tier.
	DefaultPrefix = "redis_cache_"
	// DefaultMemoryTTL is the lifetime of a memory tier entry created by promotion,
	// and the TTL used for chat data.
	DefaultMemoryTTL = 24 * time.Hour
	// DefaultTTL is used by Set when no TTL is given.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultSweepSchedule runs the expiry sweep hourly.
	DefaultSweepSchedule = "@every 1h"
	// DefaultShards is the number of memory tier shards.
	DefaultShards = 16
	// DefaultQueryTimeout is the per-operation timeout for storage backends
	// that perform I/O (SQLite, Redis).
	DefaultQueryTimeout = 5 * time.Second
)

// config holds the resolved configuration for a Store or a Storage backend.
type config struct {
	storage        Storage
	prefix         string
	codec          Codec
	memoryTTL      time.Duration
	defaultTTL     time.Duration
	sweepSchedule  string
	log            logger.Logger
	now            func() time.Time
	shards         int
	tracerProvider trace.TracerProvider
	quota          int64
	queryTimeout   time.Duration
}

// Option configures a Store or a Storage backend. Options that do not apply
// to the value being built are ignored.
type Option func(*config)

func defaultConfig() config {
	return config{
		prefix:        DefaultPrefix,
		codec:         JSONCodec,
		memoryTTL:     DefaultMemoryTTL,
		defaultTTL:    DefaultTTL,
		sweepSchedule: DefaultSweepSchedule,
		now:           time.Now,
		shards:        DefaultShards,
		queryTimeout:  DefaultQueryTimeout,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithStorage sets the persistent tier. A nil Storage (the default) runs the
// store memory-only.
func WithStorage(s Storage) Option {
	return func(c *config) { c.storage = s }
}

// WithPrefix sets the storage prefix. Defaults to DefaultPrefix.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithCodec sets the codec for persisted entries. Defaults to JSONCodec.
func WithCodec(codec Codec) Option {
	return func(c *config) { c.codec = codec }
}

// WithMemoryTTL sets the TTL for promoted entries and chat data.
func WithMemoryTTL(d time.Duration) Option {
	return func(c *config) { c.memoryTTL = d }
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithSweepSchedule sets the cron spec for the expiry sweep. An empty spec
// disables the scheduler; Sweep can still be called directly.
func WithSweepSchedule(spec string) Option {
	return func(c *config) { c.sweepSchedule = spec }
}

func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithShards sets the number of memory tier shards.
func WithShards(n int) Option {
	return func(c *config) { c.shards = n }
}

// WithTracerProvider enables tracing of store operations.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = tp }
}

// WithQuota caps the total bytes a MapStorage or SQLiteStorage will hold.
// Zero means unlimited.
func WithQuota(bytes int64) Option {
	return func(c *config) { c.quota = bytes }
}

// WithQueryTimeout sets the per-operation timeout for the SQLite and Redis
// backends. Defaults to DefaultQueryTimeout; zero or less disables the
// per-operation timeout and only the caller's context applies.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}
