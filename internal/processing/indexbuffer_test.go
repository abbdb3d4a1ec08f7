package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"depthview-go/internal/types"
)

func TestIndexBufferResize(t *testing.T) {
	b := NewIndexBuffer(types.FrameGeometry{Width: 2, Height: 2, BytesPerSample: 2})
	b.Pixels()[0] = 5

	assert.False(t, b.Resize(types.FrameGeometry{Width: 4, Height: 1, BytesPerSample: 2}))
	assert.Equal(t, byte(5), b.Pixels()[0])

	assert.True(t, b.Resize(types.FrameGeometry{Width: 3, Height: 3, BytesPerSample: 2}))
	assert.Len(t, b.Pixels(), 9)
	assert.Equal(t, 3, b.Geometry().Width)
}

func TestIndexBufferReset(t *testing.T) {
	b := NewIndexBuffer(types.FrameGeometry{Width: 2, Height: 1, BytesPerSample: 2})
	b.Pixels()[1] = 3

	b.Reset()
	assert.Equal(t, []byte{0, 0}, b.Pixels())
}
