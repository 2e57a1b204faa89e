package row

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cols := []Column{
		{ID: 3, Payload: []byte("ccc")},
		{ID: 1, Payload: []byte("a")},
		{ID: 5, Payload: nil},
		{ID: 2, Payload: []byte("bb")},
		{ID: 4, Payload: nil},
	}
	blob := Encode(cols)
	dec, err := Decode(blob)
	require.NoError(t, err)

	data, present, null := dec.Get(1)
	require.True(t, present)
	assert.False(t, null)
	assert.Equal(t, "a", string(data))

	data, present, null = dec.Get(2)
	require.True(t, present)
	assert.False(t, null)
	assert.Equal(t, "bb", string(data))

	data, present, null = dec.Get(3)
	require.True(t, present)
	assert.False(t, null)
	assert.Equal(t, "ccc", string(data))

	_, present, null = dec.Get(4)
	require.True(t, present)
	assert.True(t, null)

	_, present, null = dec.Get(5)
	require.True(t, present)
	assert.True(t, null)

	_, present, _ = dec.Get(99)
	assert.False(t, present)
}

func TestEncodeSortsIDs(t *testing.T) {
	blob := Encode([]Column{
		{ID: 9, Payload: []byte("x")},
		{ID: 1, Payload: []byte("y")},
	})
	dec, err := Decode(blob)
	require.NoError(t, err)
	nonNull, _ := dec.ColumnIDs()
	assert.Equal(t, []uint32{1, 9}, nonNull)

	data, _, _ := dec.Get(1)
	assert.Equal(t, "y", string(data))
	data, _, _ = dec.Get(9)
	assert.Equal(t, "x", string(data))
}

func TestEncodeEmptyRow(t *testing.T) {
	blob := Encode(nil)
	dec, err := Decode(blob)
	require.NoError(t, err)
	_, present, _ := dec.Get(1)
	assert.False(t, present)
}

func TestDecodeRejectsBadHeader(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	blob := Encode([]Column{{ID: 1, Payload: []byte("abc")}})
	_, err := Decode(blob[:len(blob)-2])
	assert.Error(t, err)
}
