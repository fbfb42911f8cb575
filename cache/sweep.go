package cache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// SweepResult counts the entries removed by one sweep.
type SweepResult struct {
	MemoryRemoved  int `json:"memoryRemoved"`
	StorageRemoved int `json:"storageRemoved"`
}

// Sweep removes expired entries from both tiers, and entries in storage that
// no longer decode. Storage is walked over a snapshot of its keys, so entries
// written during the sweep are either seen or skipped, never double counted,
// and an entry rewritten between its read and its removal is kept.
// Storage errors end that part of the sweep early; they are logged, not returned.
func (s *Store) Sweep(ctx context.Context) SweepResult {
	ctx, span := s.tracer.Start(ctx, "cache.sweep")
	defer span.End()

	var res SweepResult
	now := s.now()
	res.MemoryRemoved = s.memory.deleteWhere(func(_ string, e Entry) bool {
		return e.Expired(now)
	})

	if s.storage != nil {
		keys, err := s.storage.Keys(ctx, s.cfg.prefix)
		if err != nil {
			s.log.Warn("sweep: listing storage failed: %s", err)
			span.RecordError(err)
		}
		for _, sk := range keys {
			if ctx.Err() != nil {
				break
			}
			raw, found, err := s.storage.Get(ctx, sk)
			if err != nil {
				s.log.Warn("sweep: read %s failed: %s", sk, err)
				continue
			}
			if !found {
				continue
			}
			e, err := s.cfg.codec.Decode(raw)
			if err != nil || e.Expired(now) {
				// an entry rewritten since the read is left alone
				if s.dropStale(ctx, sk, raw) {
					res.StorageRemoved++
				}
			}
		}
	}

	s.sweeps.Add(1)
	span.SetAttributes(
		attribute.Int("cache.memory_removed", res.MemoryRemoved),
		attribute.Int("cache.storage_removed", res.StorageRemoved),
	)
	s.log.Debug("sweep removed %d memory and %d storage entries", res.MemoryRemoved, res.StorageRemoved)
	return res
}
