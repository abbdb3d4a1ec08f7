package compression

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize caps a decompressed frame (a 4k depth image is well below).
const maxDecodedSize = 64 << 20

var decoder = mustDecoder()

func mustDecoder() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic(err)
	}
	return d
}

// Decompress decodes a compressed sample payload. The decoded length must
// be a multiple of elemSize.
func Decompress(encoded []byte, algorithm string, elemSize int) ([]byte, error) {
	if elemSize <= 0 {
		return nil, fmt.Errorf("invalid element size %d", elemSize)
	}
	var out []byte
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "none", "":
		out = encoded
	case "zstd":
		if len(encoded) == 0 {
			return []byte{}, nil
		}
		decoded, err := decoder.DecodeAll(encoded, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		out = decoded
	default:
		return nil, fmt.Errorf("unsupported compression algorithm %q", algorithm)
	}
	if len(out)%elemSize != 0 {
		return nil, errors.New("decompressed size is not a multiple of the element size")
	}
	return out, nil
}

var encoder = mustEncoder()

func mustEncoder() *zstd.Encoder {
	e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(err)
	}
	return e
}

// Compress encodes a sample payload; it is used by the simulator and tests
// to produce the same wire format as a compressing sensor.
func Compress(raw []byte, algorithm string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "none", "":
		return raw, nil
	case "zstd":
		return encoder.EncodeAll(raw, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm %q", algorithm)
	}
}
