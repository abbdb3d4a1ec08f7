package processing

import (
	"errors"
	"fmt"

	"depthview-go/internal/types"
)

var ErrGeometryMismatch = errors.New("frame geometry mismatch")

// Validate reports whether a raw frame of rawByteLength bytes may be mapped
// onto a surfaceWidth x surfaceHeight surface under geometry g.
func Validate(rawByteLength int, g types.FrameGeometry, surfaceWidth, surfaceHeight int) bool {
	return ValidateErr(rawByteLength, g, surfaceWidth, surfaceHeight) == nil
}

// ValidateErr is Validate with the reason for a rejection.
func ValidateErr(rawByteLength int, g types.FrameGeometry, surfaceWidth, surfaceHeight int) error {
	if g.BytesPerSample <= 0 {
		return fmt.Errorf("%w: bytes per sample %d", ErrGeometryMismatch, g.BytesPerSample)
	}
	if samples := rawByteLength / g.BytesPerSample; samples != g.Width*g.Height {
		return fmt.Errorf("%w: %d samples for %dx%d", ErrGeometryMismatch, samples, g.Width, g.Height)
	}
	if g.Width != surfaceWidth || g.Height != surfaceHeight {
		return fmt.Errorf("%w: stream %dx%d, surface %dx%d", ErrGeometryMismatch, g.Width, g.Height, surfaceWidth, surfaceHeight)
	}
	return nil
}
