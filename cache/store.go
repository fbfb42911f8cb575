package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentuity/storefront-cache/logger"
	"github.com/agentuity/storefront-cache/sys"
	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/agentuity/storefront-cache/cache"

// Tier names as reported by Keys and on trace spans.
const (
	TierMemory  = "memory"
	TierStorage = "storage"
)

// Store is a two tier cache: a sharded in-process map in front of an
// optional persistent Storage. Reads fall through from memory to storage and
// promote storage hits back into memory. Writes go to both tiers; a failed
// storage write is logged and counted but never returned to the caller.
type Store struct {
	cfg     config
	memory  *memoryTier
	storage Storage
	log     logger.Logger
	tracer  trace.Tracer
	sched   cron.Schedule
	flight  singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	cron   *cron.Cron
	closed bool

	memoryHits      atomic.Int64
	storageHits     atomic.Int64
	misses          atomic.Int64
	promotions      atomic.Int64
	decodeErrors    atomic.Int64
	persistFailures atomic.Int64
	sweeps          atomic.Int64
}

// New returns a Store. The sweep scheduler is not running until Start is called.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := applyOptions(opts)
	if cfg.memoryTTL <= 0 {
		return nil, errors.Newf("cache: memory TTL must be positive, got %s", cfg.memoryTTL)
	}
	if cfg.defaultTTL <= 0 {
		return nil, errors.Newf("cache: default TTL must be positive, got %s", cfg.defaultTTL)
	}
	if cfg.prefix == "" {
		return nil, errors.New("cache: storage prefix must not be empty")
	}
	if cfg.codec == nil {
		cfg.codec = JSONCodec
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	log := cfg.log
	if log == nil {
		log = logger.NewConsoleLogger()
	}
	tp := cfg.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	var sched cron.Schedule
	if cfg.sweepSchedule != "" {
		var err error
		if sched, err = cron.ParseStandard(cfg.sweepSchedule); err != nil {
			return nil, errors.Wrapf(err, "cache: invalid sweep schedule %q", cfg.sweepSchedule)
		}
	}

	childCtx, cancel := context.WithCancel(ctx)
	return &Store{
		cfg:     cfg,
		memory:  newMemoryTier(cfg.shards),
		storage: cfg.storage,
		log:     log.WithPrefix("[cache]"),
		tracer:  tp.Tracer(tracerName),
		sched:   sched,
		ctx:     childCtx,
		cancel:  cancel,
	}, nil
}

// Start runs the expiry sweep on its schedule. It is a no-op when the
// schedule is disabled or the scheduler is already running.
func (s *Store) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.sched == nil || s.cron != nil {
		return nil
	}
	cl := cronLogger{s.log.WithPrefix("[sweep]")}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(s.sched, cron.FuncJob(s.sweepJob))
	s.cron.Start()
	s.log.Debug("sweep scheduled: %s", s.cfg.sweepSchedule)
	return nil
}

func (s *Store) sweepJob() {
	defer sys.RecoverPanic(s.log)
	s.Sweep(s.ctx)
}

// Close stops the scheduler, waits for a running sweep to finish and closes
// the storage. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	c := s.cron
	s.mu.Unlock()

	var done context.Context
	if c != nil {
		done = c.Stop()
	}
	s.cancel()
	if done != nil {
		<-done.Done()
	}
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

func (s *Store) now() time.Time {
	return s.cfg.now()
}

func (s *Store) storageKey(key string) string {
	return s.cfg.prefix + key
}

// get resolves key through both tiers and reports which tier answered.
func (s *Store) get(ctx context.Context, key Key) (Entry, string, bool) {
	ctx, span := s.tracer.Start(ctx, "cache.get", trace.WithAttributes(attribute.String("cache.key", key.String())))
	defer span.End()

	e, tier, found := s.lookup(ctx, key)
	if found {
		span.SetAttributes(attribute.String("cache.tier", tier))
	} else {
		span.SetAttributes(attribute.String("cache.tier", "miss"))
	}
	return e, tier, found
}

func (s *Store) lookup(ctx context.Context, key Key) (Entry, string, bool) {
	if key.IsZero() {
		return Entry{}, "", false
	}
	k := key.String()
	now := s.now()
	// taken before memory is consulted, a write that misses the memory check
	// still moves the generation before the promotion below
	gen := s.memory.generation(k)
	if e, ok := s.memory.lookup(k, now); ok {
		s.memoryHits.Add(1)
		return e, TierMemory, true
	}
	if s.storage == nil {
		s.misses.Add(1)
		return Entry{}, "", false
	}

	sk := s.storageKey(k)
	raw, found, err := s.storage.Get(ctx, sk)
	if err != nil {
		s.log.Warn("read %s failed, treating as miss: %s", k, err)
		s.misses.Add(1)
		return Entry{}, "", false
	}
	if !found {
		s.misses.Add(1)
		return Entry{}, "", false
	}
	e, err := s.cfg.codec.Decode(raw)
	if err != nil {
		s.decodeErrors.Add(1)
		s.log.Warn("dropping malformed entry %s: %s", k, err)
		s.dropStale(ctx, sk, raw)
		s.misses.Add(1)
		return Entry{}, "", false
	}
	if e.Expired(now) {
		s.dropStale(ctx, sk, raw)
		s.misses.Add(1)
		return Entry{}, "", false
	}

	// promoted copies get the memory TTL, not what is left of the stored one
	if s.memory.setIf(k, Entry{Data: e.Data, Created: now, Expires: now.Add(s.cfg.memoryTTL)}, gen) {
		s.promotions.Add(1)
	} else {
		s.log.Trace("skipped promotion of %s, changed during read", k)
	}
	s.storageHits.Add(1)
	return e, TierStorage, true
}

func (s *Store) deleteStorage(ctx context.Context, sk string) {
	if err := s.storage.Delete(ctx, sk); err != nil {
		s.log.Warn("delete %s failed: %s", sk, err)
	}
}

// dropStale removes sk only while it still holds raw, so an entry written
// after raw was read survives. It reports whether anything was removed.
func (s *Store) dropStale(ctx context.Context, sk string, raw []byte) bool {
	removed, err := s.storage.DeleteIf(ctx, sk, raw)
	if err != nil {
		s.log.Warn("delete %s failed: %s", sk, err)
		return false
	}
	return removed
}

// Get returns the cached payload for key. Payloads read back from storage
// are decoded into generic JSON or msgpack values; use the package level Get
// for a typed result.
func (s *Store) Get(ctx context.Context, key Key) (bool, any) {
	e, _, found := s.get(ctx, key)
	if !found {
		return false, nil
	}
	raw, ok := e.Data.(rawPayload)
	if !ok {
		return true, e.Data
	}
	v, err := raw.decodeAny()
	if err != nil {
		s.decodeErrors.Add(1)
		s.log.Warn("decode payload of %s: %s", key, err)
		return false, nil
	}
	return true, v
}

// Get retrieves a typed value from the store.
// Values still held in their original form are type asserted; values read
// back from storage are decoded with the store's codec. An error is only
// returned when the payload cannot be converted to T.
func Get[T any](ctx context.Context, s *Store, key Key) (bool, T, error) {
	e, _, found := s.get(ctx, key)
	if !found {
		var zero T
		return false, zero, nil
	}
	return convert[T](e.Data)
}

func convert[T any](data any) (bool, T, error) {
	var zero T
	if raw, ok := data.(rawPayload); ok {
		var result T
		if err := raw.codec.Unmarshal(raw.data, &result); err != nil {
			return false, zero, errors.Mark(
				errors.Wrapf(err, "cache: cannot decode %s payload as %T", raw.codec.Name(), zero),
				ErrTypeMismatch,
			)
		}
		return true, result, nil
	}
	if typed, ok := data.(T); ok {
		return true, typed, nil
	}
	if data == nil {
		return true, zero, nil
	}
	return false, zero, errors.Wrapf(ErrTypeMismatch, "cannot convert %T to %T", data, zero)
}

// Set stores data under key in both tiers. A ttl <= 0 uses the default TTL.
// Only an invalid key or a payload the codec cannot encode is an error; a
// failed storage write leaves the memory copy in place and is logged.
//
// The store keeps a reference to data, callers must not mutate it afterwards.
func (s *Store) Set(ctx context.Context, key Key, data any, ttl time.Duration) error {
	if key.IsZero() {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		ttl = s.cfg.defaultTTL
	}
	ctx, span := s.tracer.Start(ctx, "cache.set", trace.WithAttributes(
		attribute.String("cache.key", key.String()),
		attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
	))
	defer span.End()

	e := newEntry(data, s.now(), ttl)
	raw, err := s.cfg.codec.Encode(e)
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "cache: encode %s", key)
	}
	s.memory.set(key.String(), e)

	if res := s.persist(ctx, key.String(), raw); res.IsErr() {
		s.persistFailures.Add(1)
		span.RecordError(res.Err)
		if res.IsErr(ErrQuotaExceeded) {
			s.log.Warn("storage full, %s cached in memory only: %s", key, res.Err)
		} else {
			s.log.Warn("persist %s failed, cached in memory only: %s", key, res.Err)
		}
	}
	return nil
}

// persist writes an encoded entry to storage and returns the bytes written.
func (s *Store) persist(ctx context.Context, key string, raw []byte) sys.Result[int] {
	if s.storage == nil {
		return sys.Ok(0)
	}
	if err := s.storage.Set(ctx, s.storageKey(key), raw); err != nil {
		return sys.Err[int](err)
	}
	return sys.Ok(len(raw))
}

// SetByType stores data with the TTL for its data type.
func (s *Store) SetByType(ctx context.Context, key Key, data any, dataType DataType) error {
	return s.Set(ctx, key, data, s.TTLFor(dataType))
}

// Delete removes key from both tiers. Deleting a missing key is not an error.
// Storage goes first so a read racing the delete cannot promote the stored
// copy back into memory.
func (s *Store) Delete(ctx context.Context, key Key) {
	if key.IsZero() {
		return
	}
	if s.storage != nil {
		s.deleteStorage(ctx, s.storageKey(key.String()))
	}
	s.memory.delete(key.String())
}

// Metrics are counters since the store was created.
type Metrics struct {
	MemoryHits      int64 `json:"memoryHits"`
	StorageHits     int64 `json:"storageHits"`
	Misses          int64 `json:"misses"`
	Promotions      int64 `json:"promotions"`
	DecodeErrors    int64 `json:"decodeErrors"`
	PersistFailures int64 `json:"persistFailures"`
	Sweeps          int64 `json:"sweeps"`
}

func (s *Store) Metrics() Metrics {
	return Metrics{
		MemoryHits:      s.memoryHits.Load(),
		StorageHits:     s.storageHits.Load(),
		Misses:          s.misses.Load(),
		Promotions:      s.promotions.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
		PersistFailures: s.persistFailures.Load(),
		Sweeps:          s.sweeps.Load(),
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace("%s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("%s: %s %v", msg, err, keysAndValues)
}
