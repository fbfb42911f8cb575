package cache

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidKey is returned when a zero Key is used or ParseKey rejects its input.
	ErrInvalidKey = errors.New("cache: invalid key")
	// ErrDecode marks a persisted value that is not a valid encoded entry.
	ErrDecode = errors.New("cache: malformed entry")
	// ErrQuotaExceeded marks a storage write rejected for lack of space.
	ErrQuotaExceeded = errors.New("cache: storage quota exceeded")
	// ErrStorageUnavailable marks a storage backend that cannot be reached.
	ErrStorageUnavailable = errors.New("cache: storage unavailable")
	// ErrTypeMismatch is returned by Get when a payload cannot be converted to the requested type.
	ErrTypeMismatch = errors.New("cache: payload type mismatch")
	// ErrClosed is returned when starting a store that has already been closed.
	ErrClosed = errors.New("cache: store closed")
)
