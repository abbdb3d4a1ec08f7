package palette

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaletteHasSixteenOpaqueEntries(t *testing.T) {
	colors := Colors()
	require.Len(t, colors, Size)
	for i, c := range colors {
		rgba, ok := c.(color.RGBA)
		require.True(t, ok, "entry %d has type %T", i, c)
		assert.Equal(t, uint8(255), rgba.A, "entry %d", i)
	}
}

func TestColorsReturnsCopy(t *testing.T) {
	colors := Colors()
	colors[0] = color.Black
	assert.Equal(t, color.RGBA{R: 232, G: 11, B: 11, A: 255}, At(0))
}

func TestHex(t *testing.T) {
	hex := Hex()
	require.Len(t, hex, Size)
	assert.Equal(t, "#e80b0b", hex[0])
	assert.Equal(t, "#5be014", hex[6])
	assert.Equal(t, "#e01462", hex[15])
}

func TestAtWraps(t *testing.T) {
	assert.Equal(t, At(1), At(17))
}
