package ingest

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthview-go/internal/types"
)

func depthSamples(values ...uint16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func imagePayload(t *testing.T, rows, cols int, raw []byte, algorithm string) []byte {
	t.Helper()
	data, err := EncodeSamples(rows, cols, 2, raw, algorithm)
	require.NoError(t, err)
	payload, err := cbor.Marshal(map[string]any{
		"type":         "image",
		"series_id":    3,
		"image_id":     7,
		"min_reliable": 500,
		"max_reliable": 4500,
		"data":         data,
	})
	require.NoError(t, err)
	return payload
}

func startPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	payload, err := cbor.Marshal(map[string]any{
		"type":             "start",
		"series_id":        "run-1",
		"width":            w,
		"height":           h,
		"bytes_per_sample": 2,
	})
	require.NoError(t, err)
	return payload
}

func TestDecodeMultiDimArrayUint16(t *testing.T) {
	value := cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{1, 2},
			cbor.Tag{Number: tagUint16LE, Content: []byte{0x20, 0x03, 0x4c, 0x04}},
		},
	}

	got, err := decodeMultiDimArray(value)
	require.NoError(t, err)
	assert.Equal(t, sampleArray{Rows: 1, Cols: 2, ElemSize: 2, Data: []byte{0x20, 0x03, 0x4c, 0x04}}, got)
}

func TestDecodeMultiDimArrayRejects(t *testing.T) {
	_, err := decodeMultiDimArray([]byte{1})
	assert.Error(t, err)

	_, err = decodeMultiDimArray(cbor.Tag{Number: tagMultiDimArray, Content: []any{[]any{1, 1}, cbor.Tag{Number: 85, Content: []byte{0, 0, 0, 0}}}})
	assert.Error(t, err)
}

func TestDecodeMessageImage(t *testing.T) {
	raw := depthSamples(810, 1110)
	msg, err := DecodeMessage(imagePayload(t, 1, 2, raw, ""))
	require.NoError(t, err)

	assert.Equal(t, MessageImage, msg.Type)
	assert.Equal(t, "3", msg.SeriesID)
	assert.Equal(t, 7, msg.Image.ImageID)
	assert.Equal(t, types.FrameMeta{MinReliable: 500, MaxReliable: 4500, MaxDepth: 65535}, msg.Image.Meta)
	assert.Equal(t, 2, msg.Image.Width)
	assert.Equal(t, 1, msg.Image.Height)
	assert.Equal(t, 2, msg.Image.BytesPerSample)
	assert.Equal(t, raw, msg.Image.Data)
}

func TestDecodeMessageCompressedImage(t *testing.T) {
	values := make([]uint16, 64)
	for i := range values {
		values[i] = uint16(800 + i)
	}
	raw := depthSamples(values...)
	msg, err := DecodeMessage(imagePayload(t, 8, 8, raw, "zstd"))
	require.NoError(t, err)
	assert.Equal(t, raw, msg.Image.Data)
}

func TestDecodeMessageStart(t *testing.T) {
	msg, err := DecodeMessage(startPayload(t, 512, 424))
	require.NoError(t, err)
	assert.Equal(t, "run-1", msg.SeriesID)
	assert.Equal(t, types.FrameGeometry{Width: 512, Height: 424, BytesPerSample: 2}, msg.Geometry)
}

func TestDecodeMessageStatus(t *testing.T) {
	payload, err := cbor.Marshal(map[string]any{"type": "status", "available": false})
	require.NoError(t, err)
	msg, err := DecodeMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, MessageStatus, msg.Type)
	assert.False(t, msg.Available)
}

func TestDecodeMessageErrors(t *testing.T) {
	_, err := DecodeMessage([]byte{0xff, 0x00})
	assert.Error(t, err)

	unknown, err := cbor.Marshal(map[string]any{"type": "calibration"})
	require.NoError(t, err)
	_, err = DecodeMessage(unknown)
	assert.True(t, errors.Is(err, ErrUnknownMessage), "got %v", err)

	badRange, err := cbor.Marshal(map[string]any{
		"type": "image", "image_id": 1, "min_reliable": 500, "max_reliable": 70000,
	})
	require.NoError(t, err)
	_, err = DecodeMessage(badRange)
	assert.Error(t, err)

	badGeometry, err := cbor.Marshal(map[string]any{
		"type": "start", "width": 0, "height": 4, "bytes_per_sample": 2,
	})
	require.NoError(t, err)
	_, err = DecodeMessage(badGeometry)
	assert.ErrorIs(t, err, types.ErrInvalidGeometry)
}
