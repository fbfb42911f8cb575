package cache

import "time"

// Entry is a single cached payload with its creation and absolute expiry time.
type Entry struct {
	Data    any
	Created time.Time
	Expires time.Time
}

func newEntry(data any, now time.Time, ttl time.Duration) Entry {
	return Entry{Data: data, Created: now, Expires: now.Add(ttl)}
}

// Expired reports whether the entry is dead at now. An entry expiring exactly at now is dead.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// ttlSeconds is the whole number of seconds left before expiry, never negative.
func (e Entry) ttlSeconds(now time.Time) int64 {
	d := e.Expires.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// rawPayload is a payload read back from storage that has not been decoded
// into a concrete type yet. Get[T] decodes it on demand.
type rawPayload struct {
	codec Codec
	data  []byte
}

func (p rawPayload) decodeAny() (any, error) {
	var v any
	if err := p.codec.Unmarshal(p.data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
