// Package palette holds the false-colour table used to render depth bands.
package palette

import (
	"fmt"
	"image/color"
)

// Size is the number of entries in the display alphabet.
const Size = 16

var entries = [Size]color.RGBA{
	{R: 232, G: 11, B: 11, A: 255},
	{R: 244, G: 125, B: 66, A: 255},
	{R: 232, G: 144, B: 13, A: 255},
	{R: 232, G: 177, B: 12, A: 255},
	{R: 232, G: 224, B: 11, A: 255},
	{R: 156, G: 224, B: 20, A: 255},
	{R: 91, G: 224, B: 20, A: 255},
	{R: 20, G: 224, B: 64, A: 255},
	{R: 20, G: 224, B: 128, A: 255},
	{R: 20, G: 224, B: 186, A: 255},
	{R: 20, G: 169, B: 224, A: 255},
	{R: 20, G: 122, B: 224, A: 255},
	{R: 23, G: 20, B: 224, A: 255},
	{R: 183, G: 20, B: 224, A: 255},
	{R: 224, G: 20, B: 183, A: 255},
	{R: 224, G: 20, B: 98, A: 255},
}

// At returns the colour for index i. Indices outside the table wrap into it.
func At(i uint8) color.RGBA {
	return entries[int(i)%Size]
}

// Colors returns a fresh copy of the table as a color.Palette.
func Colors() color.Palette {
	out := make(color.Palette, Size)
	for i, c := range entries {
		out[i] = c
	}
	return out
}

// Hex returns the table as CSS colour strings.
func Hex() []string {
	out := make([]string, Size)
	for i, c := range entries {
		out[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return out
}
