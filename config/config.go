// Package config loads the settings for a cache store and the tools built on it.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. built-in defaults
//  2. a YAML file, when a path is given
//  3. environment variables, after loading a .env file from the working
//     directory when one exists
//
// Environment Variables:
//
// Storage:
//   - STOREFRONT_CACHE_STORAGE_DRIVER: memory, sqlite, redis or none (default: sqlite)
//   - STOREFRONT_CACHE_STORAGE_PATH: SQLite database file (default: storefront-cache.db)
//   - STOREFRONT_CACHE_STORAGE_QUOTA: byte quota for memory and sqlite, e.g. "5MB" (default: unlimited)
//   - STOREFRONT_CACHE_QUERY_TIMEOUT: per operation timeout (default: 5s)
//   - STOREFRONT_CACHE_BREAKER: guard the storage with a circuit breaker (default: false)
//   - STOREFRONT_CACHE_REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - STOREFRONT_CACHE_REDIS_PASSWORD: Redis password
//   - STOREFRONT_CACHE_REDIS_DB: Redis database number (default: 0)
//
// Cache:
//   - STOREFRONT_CACHE_PREFIX: storage key prefix (default: redis_cache_)
//   - STOREFRONT_CACHE_CODEC: json or msgpack (default: json)
//   - STOREFRONT_CACHE_MEMORY_TTL: TTL of promoted entries and chat data (default: 24h)
//   - STOREFRONT_CACHE_DEFAULT_TTL: TTL when none is given (default: 30d)
//   - STOREFRONT_CACHE_SWEEP_SCHEDULE: cron spec of the expiry sweep, empty disables (default: @every 1h)
//   - STOREFRONT_CACHE_SHARDS: memory tier shard count (default: 16)
//
// Monitoring:
//   - STOREFRONT_CACHE_API_URL: backend base URL, health is read from <url>/api/health
//   - STOREFRONT_CACHE_API_TOKEN: bearer token for the backend
//   - STOREFRONT_CACHE_TENANT: default tenant for reports
//
// Telemetry:
//   - STOREFRONT_CACHE_OTLP_URL: OTLP/HTTP collector, spans go to <url>/v1/traces and logs to <url>/v1/logs (default: disabled)
//   - STOREFRONT_CACHE_OTLP_LOG_LEVEL: lowest level exported to the collector (default: debug)
//   - STOREFRONT_CACHE_OTLP_TOKEN: bearer token for the collector
//   - STOREFRONT_CACHE_SERVICE_NAME: service.name resource attribute (default: storefront-cache)
//
// Logging:
//   - STOREFRONT_CACHE_LOG_LEVEL: trace, debug, info, warn, error or none (default: info)
//   - STOREFRONT_CACHE_LOG_FORMAT: console or json (default: console)
//
// Example usage:
//
//	cfg, err := config.Load("cache.yaml")
//	if err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
//	storage, err := cfg.OpenStorage(ctx)
//	...
//	store, err := cache.New(ctx, cfg.StoreOptions(storage, log)...)
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentuity/storefront-cache/cache"
	"github.com/agentuity/storefront-cache/logger"
	"github.com/agentuity/storefront-cache/redact"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "STOREFRONT_CACHE_"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverNone   = "none"
)

// Config holds every setting. The zero value is not useful; use Default or Load.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type StorageConfig struct {
	Driver       string   `yaml:"driver"`
	Path         string   `yaml:"path,omitempty"`
	Quota        ByteSize `yaml:"quota,omitempty"`
	QueryTimeout Duration `yaml:"query_timeout,omitempty"`
	Redis        Redis    `yaml:"redis,omitempty"`
	Breaker      Breaker  `yaml:"breaker,omitempty"`
}

type Redis struct {
	Address  string        `yaml:"address"`
	Password redact.Secret `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
}

// Breaker configures the circuit breaker placed in front of the storage.
type Breaker struct {
	Enabled     bool     `yaml:"enabled"`
	MaxFailures int      `yaml:"max_failures,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
}

type CacheConfig struct {
	Prefix        string   `yaml:"prefix"`
	Codec         string   `yaml:"codec"`
	MemoryTTL     Duration `yaml:"memory_ttl"`
	DefaultTTL    Duration `yaml:"default_ttl"`
	SweepSchedule string   `yaml:"sweep_schedule"`
	Shards        int      `yaml:"shards"`
}

type MonitorConfig struct {
	APIURL string        `yaml:"api_url,omitempty"`
	Token  redact.Secret `yaml:"token,omitempty"`
	Tenant string        `yaml:"tenant,omitempty"`
}

// TelemetryConfig enables span and log export when OTLPURL is set.
type TelemetryConfig struct {
	OTLPURL     string        `yaml:"otlp_url,omitempty"`
	Token       redact.Secret `yaml:"token,omitempty"`
	ServiceName string        `yaml:"service_name"`
	LogLevel    string        `yaml:"log_level"`
}

// Level returns the lowest level exported to the collector.
func (t TelemetryConfig) Level() logger.LogLevel {
	return logger.ParseLevel(t.LogLevel, logger.LevelDebug)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:       DriverSQLite,
			Path:         "storefront-cache.db",
			QueryTimeout: Duration(cache.DefaultQueryTimeout),
			Redis:        Redis{Address: "localhost:6379"},
			Breaker:      Breaker{MaxFailures: 5, Timeout: Duration(30 * time.Second)},
		},
		Cache: CacheConfig{
			Prefix:        cache.DefaultPrefix,
			Codec:         "json",
			MemoryTTL:     Duration(cache.DefaultMemoryTTL),
			DefaultTTL:    Duration(cache.DefaultTTL),
			SweepSchedule: cache.DefaultSweepSchedule,
			Shards:        cache.DefaultShards,
		},
		Telemetry: TelemetryConfig{ServiceName: "storefront-cache", LogLevel: "debug"},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

// Load resolves the configuration from defaults, the YAML file at path (when
// path is not empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookup(name string) (string, bool) {
	return os.LookupEnv(EnvPrefix + name)
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"STORAGE_DRIVER": &c.Storage.Driver,
		"STORAGE_PATH":   &c.Storage.Path,
		"REDIS_ADDRESS":  &c.Storage.Redis.Address,
		"PREFIX":         &c.Cache.Prefix,
		"CODEC":          &c.Cache.Codec,
		"SWEEP_SCHEDULE": &c.Cache.SweepSchedule,
		"API_URL":        &c.Monitor.APIURL,
		"TENANT":         &c.Monitor.Tenant,
		"OTLP_URL":       &c.Telemetry.OTLPURL,
		"SERVICE_NAME":   &c.Telemetry.ServiceName,
		"OTLP_LOG_LEVEL": &c.Telemetry.LogLevel,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	secrets := map[string]*redact.Secret{
		"REDIS_PASSWORD": &c.Storage.Redis.Password,
		"API_TOKEN":      &c.Monitor.Token,
		"OTLP_TOKEN":     &c.Telemetry.Token,
	}
	for name, dst := range secrets {
		if v, ok := lookup(name); ok {
			*dst = redact.Secret(v)
		}
	}

	durations := map[string]*Duration{
		"QUERY_TIMEOUT": &c.Storage.QueryTimeout,
		"MEMORY_TTL":    &c.Cache.MemoryTTL,
		"DEFAULT_TTL":   &c.Cache.DefaultTTL,
	}
	for name, dst := range durations {
		if v, ok := lookup(name); ok {
			d, err := ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, name)
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"REDIS_DB": &c.Storage.Redis.DB,
		"SHARDS":   &c.Cache.Shards,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, name)
			}
			*dst = n
		}
	}

	if v, ok := lookup("STORAGE_QUOTA"); ok {
		q, err := ParseByteSize(v)
		if err != nil {
			return errors.Wrapf(err, "%sSTORAGE_QUOTA", EnvPrefix)
		}
		c.Storage.Quota = q
	}
	if v, ok := lookup("BREAKER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%sBREAKER", EnvPrefix)
		}
		c.Storage.Breaker.Enabled = b
	}
	return nil
}

// Validate checks the settings for values the cache would reject or misuse.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverNone:
	case DriverSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Storage.Redis.Address == "" {
			return errors.New("storage.redis.address is required for the redis driver")
		}
		if c.Storage.Redis.DB < 0 || c.Storage.Redis.DB > 15 {
			return errors.Newf("storage.redis.db must be between 0 and 15, got %d", c.Storage.Redis.DB)
		}
	default:
		return errors.Newf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.QueryTimeout <= 0 {
		return errors.New("storage.query_timeout must be positive")
	}
	if c.Cache.Prefix == "" {
		return errors.New("cache.prefix must not be empty")
	}
	if _, err := c.Codec(); err != nil {
		return err
	}
	if c.Cache.MemoryTTL <= 0 {
		return errors.New("cache.memory_ttl must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		return errors.New("cache.default_ttl must be positive")
	}
	if c.Cache.Shards <= 0 {
		return errors.New("cache.shards must be positive")
	}
	if c.Cache.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.Cache.SweepSchedule); err != nil {
			return errors.Wrapf(err, "cache.sweep_schedule %q", c.Cache.SweepSchedule)
		}
	}
	if c.Telemetry.OTLPURL != "" && c.Telemetry.ServiceName == "" {
		return errors.New("telemetry.service_name is required when telemetry.otlp_url is set")
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return errors.Newf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// Codec returns the codec named by cache.codec.
func (c *Config) Codec() (cache.Codec, error) {
	switch strings.ToLower(c.Cache.Codec) {
	case "", "json":
		return cache.JSONCodec, nil
	case "msgpack":
		return cache.MsgpackCodec, nil
	default:
		return nil, errors.Newf("unknown codec %q", c.Cache.Codec)
	}
}

// Logger returns a logger for the configured format and level.
func (c *Config) Logger() logger.Logger {
	return logger.New(c.Log.Format, logger.ParseLevel(c.Log.Level, logger.LevelInfo))
}

// StoreOptions returns the cache options for these settings. storage may be
// nil for a memory-only store.
func (c *Config) StoreOptions(storage cache.Storage, log logger.Logger) []cache.Option {
	codec, _ := c.Codec()
	return []cache.Option{
		cache.WithStorage(storage),
		cache.WithPrefix(c.Cache.Prefix),
		cache.WithCodec(codec),
		cache.WithMemoryTTL(c.Cache.MemoryTTL.Std()),
		cache.WithDefaultTTL(c.Cache.DefaultTTL.Std()),
		cache.WithSweepSchedule(c.Cache.SweepSchedule),
		cache.WithShards(c.Cache.Shards),
		cache.WithLogger(log),
	}
}
