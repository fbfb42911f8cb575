package cache

import (
	"context"
	"slices"
	"strings"

	"github.com/agentuity/storefront-cache/sys"
)

// Stats summarises both tiers. TotalSize is the sum of the encoded lengths
// of the entries in storage.
type Stats struct {
	MemoryEntries  int `json:"memoryEntries"`
	StorageEntries int `json:"storageEntries"`
	TotalSize      int `json:"totalSize"`
}

// KeyInfo describes one cached key. A key held by both tiers is reported
// once as memory, with Size taken from its stored copy.
type KeyInfo struct {
	Key  string `json:"key"`
	Tier string `json:"type"`
	TTL  int64  `json:"ttl"`
	Size *int   `json:"size,omitempty"`
}

// Stats counts entries in both tiers. Storage errors are logged and the
// storage counts cover what could be read.
func (s *Store) Stats(ctx context.Context) Stats {
	stats := Stats{MemoryEntries: s.memory.size()}
	if s.storage == nil {
		return stats
	}
	keys, err := s.storage.Keys(ctx, s.cfg.prefix)
	if err != nil {
		s.log.Warn("stats: listing storage failed: %s", err)
		return stats
	}
	for _, sk := range keys {
		raw, found, err := s.storage.Get(ctx, sk)
		if err != nil {
			s.log.Warn("stats: read %s failed: %s", sk, err)
			continue
		}
		if !found {
			continue
		}
		stats.StorageEntries++
		stats.TotalSize += len(raw)
	}
	return stats
}

// Keys lists every key in both tiers with its remaining TTL in seconds.
// Memory keys come first, each group sorted by key. Stored entries that do
// not decode are skipped.
func (s *Store) Keys(ctx context.Context) []KeyInfo {
	now := s.now()
	snapshot := s.memory.snapshot()
	memKeys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		memKeys = append(memKeys, k)
	}
	slices.Sort(memKeys)

	out := make([]KeyInfo, 0, len(memKeys))
	index := make(map[string]int, len(memKeys))
	for _, k := range memKeys {
		index[k] = len(out)
		out = append(out, KeyInfo{Key: k, Tier: TierMemory, TTL: snapshot[k].ttlSeconds(now)})
	}
	if s.storage == nil {
		return out
	}

	keys, err := s.storage.Keys(ctx, s.cfg.prefix)
	if err != nil {
		s.log.Warn("keys: listing storage failed: %s", err)
		return out
	}
	for _, sk := range keys {
		raw, found, err := s.storage.Get(ctx, sk)
		if err != nil || !found {
			continue
		}
		e, err := s.cfg.codec.Decode(raw)
		if err != nil {
			continue
		}
		k := strings.TrimPrefix(sk, s.cfg.prefix)
		if i, ok := index[k]; ok {
			out[i].Size = sys.Ptr(len(raw))
			continue
		}
		out = append(out, KeyInfo{Key: k, Tier: TierStorage, TTL: e.ttlSeconds(now), Size: sys.Ptr(len(raw))})
	}
	return out
}

// Clear empties both tiers and returns how many entries were removed. Only
// keys under the store's prefix are touched in storage.
func (s *Store) Clear(ctx context.Context) int {
	var removed int
	if s.storage != nil {
		keys, err := s.storage.Keys(ctx, s.cfg.prefix)
		if err != nil {
			s.log.Warn("clear: listing storage failed: %s", err)
		}
		for _, sk := range keys {
			if err := s.storage.Delete(ctx, sk); err != nil {
				s.log.Warn("clear: delete %s failed: %s", sk, err)
				continue
			}
			removed++
		}
	}
	// memory last, see Delete
	removed += s.memory.clear()
	s.log.Info("cleared %d cache entries", removed)
	return removed
}
