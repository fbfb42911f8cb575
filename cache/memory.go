package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// memoryTier is the in-process tier. Keys are spread over shards by hash so
// concurrent readers of unrelated keys do not contend on one lock. There is
// no capacity bound; entries only leave by expiry or explicit removal.
//
// Every shard carries a generation that set, delete, deleteWhere and clear
// bump. A promotion from storage is only applied while the generation it
// started under is still current, so a write or removal that lands during
// the storage read is never overwritten by the older stored copy.
type memoryTier struct {
	shards []*memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
	gen     uint64
}

func newMemoryTier(shards int) *memoryTier {
	if shards <= 0 {
		shards = 1
	}
	m := &memoryTier{shards: make([]*memoryShard, shards)}
	for i := range m.shards {
		m.shards[i] = &memoryShard{entries: make(map[string]Entry)}
	}
	return m
}

func (m *memoryTier) shard(key string) *memoryShard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

// lookup returns the live entry for key. An expired entry is removed and
// reported as absent.
func (m *memoryTier) lookup(key string, now time.Time) (Entry, bool) {
	s := m.shard(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if !e.Expired(now) {
		return e, true
	}
	s.mu.Lock()
	// re-check, a concurrent set may have replaced it
	if cur, ok := s.entries[key]; ok && cur.Expired(now) {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return Entry{}, false
}

func (m *memoryTier) get(key string) (Entry, bool) {
	s := m.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// generation returns the current generation of the shard holding key.
func (m *memoryTier) generation(key string) uint64 {
	s := m.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (m *memoryTier) set(key string, e Entry) {
	s := m.shard(key)
	s.mu.Lock()
	s.entries[key] = e
	s.gen++
	s.mu.Unlock()
}

// setIf stores e only if the shard is still at generation gen.
func (m *memoryTier) setIf(key string, e Entry, gen uint64) bool {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.entries[key] = e
	return true
}

func (m *memoryTier) delete(key string) bool {
	s := m.shard(key)
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.gen++
	s.mu.Unlock()
	return ok
}

// deleteWhere removes every entry for which fn returns true and returns how many were removed.
func (m *memoryTier) deleteWhere(fn func(key string, e Entry) bool) int {
	var n int
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.entries {
			if fn(k, e) {
				delete(s.entries, k)
				n++
			}
		}
		s.gen++
		s.mu.Unlock()
	}
	return n
}

func (m *memoryTier) clear() int {
	var n int
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.entries = make(map[string]Entry)
		s.gen++
		s.mu.Unlock()
	}
	return n
}

func (m *memoryTier) size() int {
	var n int
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// snapshot copies the current entries. It is consistent per shard, not across shards.
func (m *memoryTier) snapshot() map[string]Entry {
	out := make(map[string]Entry)
	for _, s := range m.shards {
		s.mu.RLock()
		for k, e := range s.entries {
			out[k] = e
		}
		s.mu.RUnlock()
	}
	return out
}
