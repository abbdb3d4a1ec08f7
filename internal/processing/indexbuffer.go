package processing

import (
	"depthview-go/internal/types"
)

// IndexBuffer is the per-pixel colour index image carried between frames.
// It is not safe for concurrent use; the frame controller serialises access.
type IndexBuffer struct {
	geometry types.FrameGeometry
	pix      []byte
}

func NewIndexBuffer(g types.FrameGeometry) *IndexBuffer {
	return &IndexBuffer{
		geometry: g,
		pix:      make([]byte, g.Pixels()),
	}
}

func (b *IndexBuffer) Geometry() types.FrameGeometry {
	return b.geometry
}

// Pixels exposes the buffer for in-place mapping.
func (b *IndexBuffer) Pixels() []byte {
	return b.pix
}

// Resize reallocates the buffer when g differs in size. It reports whether
// a new buffer was allocated.
func (b *IndexBuffer) Resize(g types.FrameGeometry) bool {
	if g.Pixels() == len(b.pix) {
		b.geometry = g
		return false
	}
	b.geometry = g
	b.pix = make([]byte, g.Pixels())
	return true
}

// Reset clears every index back to 0.
func (b *IndexBuffer) Reset() {
	clear(b.pix)
}
