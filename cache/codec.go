package cache

import (
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts entries to and from the persistent tier's byte format.
// Decode must never panic on arbitrary input; it returns an error marked
// with ErrDecode instead, and leaves Entry.Data as an undecoded payload.
type Codec interface {
	Name() string
	Encode(e Entry) ([]byte, error)
	Decode(raw []byte) (Entry, error)
	Unmarshal(data []byte, v any) error
}

var (
	// JSONCodec stores entries as {"data":...,"expires":<ms>,"created":<ms>}.
	JSONCodec Codec = jsonCodec{}
	// MsgpackCodec stores the same fields in msgpack, for byte-oriented backends.
	MsgpackCodec Codec = msgpackCodec{}
)

func decodeError(codec string, err error) error {
	return errors.Mark(errors.Wrapf(err, "cache: %s decode", codec), ErrDecode)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// payloadFor returns the value to embed in an encoded entry. Payloads that
// were read back with the same codec are embedded without a decode round-trip.
func payloadFor(c Codec, data any) (any, error) {
	raw, ok := data.(rawPayload)
	if !ok {
		return data, nil
	}
	if raw.codec.Name() == c.Name() {
		switch c.(type) {
		case jsonCodec:
			return json.RawMessage(raw.data), nil
		case msgpackCodec:
			return msgpack.RawMessage(raw.data), nil
		}
	}
	return raw.decodeAny()
}

type jsonCodec struct{}

type jsonWireEntry struct {
	Data    json.RawMessage `json:"data"`
	Expires *int64          `json:"expires"`
	Created *int64          `json:"created"`
}

func (jsonCodec) Name() string { return "json" }

func (c jsonCodec) Encode(e Entry) ([]byte, error) {
	data, err := payloadFor(c, e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Data    any   `json:"data"`
		Expires int64 `json:"expires"`
		Created int64 `json:"created"`
	}{data, e.Expires.UnixMilli(), e.Created.UnixMilli()})
}

func (c jsonCodec) Decode(raw []byte) (Entry, error) {
	var w jsonWireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return Entry{}, decodeError(c.Name(), err)
	}
	if w.Expires == nil || *w.Expires <= 0 {
		return Entry{}, decodeError(c.Name(), errors.New("missing expires"))
	}
	if w.Data == nil {
		w.Data = json.RawMessage("null")
	}
	var created int64
	if w.Created != nil {
		created = *w.Created
	}
	return Entry{
		Data:    rawPayload{codec: c, data: w.Data},
		Created: fromMillis(created),
		Expires: fromMillis(*w.Expires),
	}, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

type msgpackWireEntry struct {
	Data    msgpack.RawMessage `msgpack:"data"`
	Expires *int64             `msgpack:"expires"`
	Created *int64             `msgpack:"created"`
}

func (msgpackCodec) Name() string { return "msgpack" }

func (c msgpackCodec) Encode(e Entry) ([]byte, error) {
	data, err := payloadFor(c, e.Data)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(struct {
		Data    any   `msgpack:"data"`
		Expires int64 `msgpack:"expires"`
		Created int64 `msgpack:"created"`
	}{data, e.Expires.UnixMilli(), e.Created.UnixMilli()})
}

func (c msgpackCodec) Decode(raw []byte) (Entry, error) {
	var w msgpackWireEntry
	if err := msgpack.Unmarshal(raw, &w); err != nil {
		return Entry{}, decodeError(c.Name(), err)
	}
	if w.Expires == nil || *w.Expires <= 0 {
		return Entry{}, decodeError(c.Name(), errors.New("missing expires"))
	}
	if w.Data == nil {
		w.Data = msgpack.RawMessage{0xc0} // nil
	}
	var created int64
	if w.Created != nil {
		created = *w.Created
	}
	return Entry{
		Data:    rawPayload{codec: c, data: w.Data},
		Created: fromMillis(created),
		Expires: fromMillis(*w.Expires),
	}, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
