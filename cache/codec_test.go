package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecLayout(t *testing.T) {
	e := Entry{
		Data:    map[string]string{"name": "Shop"},
		Created: time.UnixMilli(1000),
		Expires: time.UnixMilli(61000),
	}
	raw, err := JSONCodec.Encode(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"name":"Shop"},"expires":61000,"created":1000}`, string(raw))

	decoded, err := JSONCodec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, e.Created, decoded.Created)
	assert.Equal(t, e.Expires, decoded.Expires)

	found, shop, err := convert[map[string]string](decoded.Data)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Shop", shop["name"])

	// re-encoding a decoded entry keeps the payload bytes
	again, err := JSONCodec.Encode(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))
}

func TestCodecsRejectMalformedInput(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte(""),
		[]byte("null"),
		[]byte("{"),
		[]byte("[]"),
		[]byte(`{"data":1}`),
		[]byte(`{"data":1,"expires":"soon"}`),
		[]byte(`{"data":1,"expires":0}`),
		{0xde, 0xad, 0xbe, 0xef},
	}
	for _, codec := range []Codec{JSONCodec, MsgpackCodec} {
		for _, in := range inputs {
			assert.NotPanics(t, func() {
				_, err := codec.Decode(in)
				assert.ErrorIs(t, err, ErrDecode, "%s: %q", codec.Name(), in)
			})
		}
	}
}

func TestMsgpackCodecRoundTrip(t *testing.T) {
	e := Entry{
		Data:    map[string]string{"name": "Shop"},
		Created: time.UnixMilli(1000),
		Expires: time.UnixMilli(61000),
	}
	raw, err := MsgpackCodec.Encode(e)
	require.NoError(t, err)
	decoded, err := MsgpackCodec.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, e.Expires, decoded.Expires)

	found, shop, err := convert[map[string]string](decoded.Data)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"name": "Shop"}, shop)
}

func TestCodecCrossEncode(t *testing.T) {
	raw, err := JSONCodec.Encode(Entry{Data: []string{"a", "b"}, Created: time.UnixMilli(1), Expires: time.UnixMilli(2)})
	require.NoError(t, err)
	fromJSON, err := JSONCodec.Decode(raw)
	require.NoError(t, err)

	packed, err := MsgpackCodec.Encode(fromJSON)
	require.NoError(t, err)
	fromMsgpack, err := MsgpackCodec.Decode(packed)
	require.NoError(t, err)

	_, tags, err := convert[[]string](fromMsgpack.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tags)
}

func TestCodecNullPayload(t *testing.T) {
	for _, codec := range []Codec{JSONCodec, MsgpackCodec} {
		raw, err := codec.Encode(Entry{Created: time.UnixMilli(1), Expires: time.UnixMilli(2)})
		require.NoError(t, err)
		e, err := codec.Decode(raw)
		require.NoError(t, err, codec.Name())
		found, v, err := convert[any](e.Data)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Nil(t, v)
	}
}

func TestEncodeRejectsUnserializablePayload(t *testing.T) {
	_, err := JSONCodec.Encode(Entry{Data: make(chan int), Expires: time.UnixMilli(1)})
	assert.Error(t, err)
}
