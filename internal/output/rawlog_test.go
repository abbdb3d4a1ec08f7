package output

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "raw_cbor")
	require.NoError(t, err)
	require.NoError(t, w.Record([]byte("first")))
	require.NoError(t, w.Record([]byte{}))
	require.NoError(t, w.Record([]byte("third")))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Error(t, w.Record([]byte("late")))

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()

	r, err := NewRawLogReader(f)
	require.NoError(t, err)
	var got [][]byte
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.False(t, rec.Time.IsZero())
		got = append(got, rec.Payload)
	}
	assert.Equal(t, [][]byte{[]byte("first"), {}, []byte("third")}, got)
}

func TestRawLogReaderRejectsMagic(t *testing.T) {
	_, err := NewRawLogReader(bytes.NewReader([]byte("STXMRAW1")))
	assert.ErrorIs(t, err, ErrBadMagic)
}
