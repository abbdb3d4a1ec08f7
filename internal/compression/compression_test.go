package compression

import (
	"bytes"
	"testing"
)

func TestZstdRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x20, 0x03}, 4096)
	encoded, err := Compress(raw, "zstd")
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(encoded) >= len(raw) {
		t.Fatalf("expected compression, got %d >= %d", len(encoded), len(raw))
	}
	decoded, err := Decompress(encoded, "ZSTD", 2)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecompressRejects(t *testing.T) {
	if _, err := Decompress([]byte{1, 2}, "bslz4", 2); err == nil {
		t.Fatalf("expected unsupported algorithm error")
	}
	if _, err := Decompress([]byte{1, 2, 3}, "none", 2); err == nil {
		t.Fatalf("expected element size error")
	}
	if _, err := Decompress([]byte{1, 2}, "none", 0); err == nil {
		t.Fatalf("expected invalid element size error")
	}
	if _, err := Decompress([]byte("not zstd"), "zstd", 1); err == nil {
		t.Fatalf("expected corrupt payload error")
	}
}
