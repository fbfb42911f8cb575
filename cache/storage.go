package cache

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Storage is the persistent tier: a byte store shared with other state,
// which is why every key the store writes carries its prefix.
//
// Implementations report a missing key as (nil, false, nil). Write failures
// caused by capacity should be marked with ErrQuotaExceeded and failures to
// reach the backend with ErrStorageUnavailable.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteIf removes key only while it holds value and reports whether it
	// did. The compare and the removal are one atomic step.
	DeleteIf(ctx context.Context, key string, value []byte) (bool, error)
	// Keys returns a snapshot of the keys beginning with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

type mapStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
	used   int64
	quota  int64
	closed bool
}

var _ Storage = (*mapStorage)(nil)

// NewMapStorage returns a process-local Storage. WithQuota bounds the total
// number of value bytes it holds.
func NewMapStorage(opts ...Option) Storage {
	cfg := applyOptions(opts)
	return &mapStorage{values: make(map[string][]byte), quota: cfg.quota}
}

func (m *mapStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, errors.Mark(errors.New("map storage closed"), ErrStorageUnavailable)
	}
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (m *mapStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.Mark(errors.New("map storage closed"), ErrStorageUnavailable)
	}
	used := m.used - int64(len(m.values[key])) + int64(len(value))
	if m.quota > 0 && used > m.quota {
		return errors.Wrapf(ErrQuotaExceeded, "writing %d bytes to %s", len(value), key)
	}
	m.values[key] = slices.Clone(value)
	m.used = used
	return nil
}

func (m *mapStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		m.used -= int64(len(v))
		delete(m.values, key)
	}
	return nil
}

func (m *mapStorage) DeleteIf(_ context.Context, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok || !bytes.Equal(v, value) {
		return false, nil
	}
	m.used -= int64(len(v))
	delete(m.values, key)
	return true, nil
}

func (m *mapStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *mapStorage) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
