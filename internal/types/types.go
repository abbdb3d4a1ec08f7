package types

import (
	"errors"
	"fmt"
)

// FrameGeometry describes the depth stream of an open sensor. Samples are
// little-endian and at least 16 bits wide; wider samples carry the depth in
// their low two bytes.
type FrameGeometry struct {
	Width          int `json:"width"`
	Height         int `json:"height"`
	BytesPerSample int `json:"bytes_per_sample"`
}

var ErrInvalidGeometry = errors.New("invalid frame geometry")

func (g FrameGeometry) Validate() error {
	if g.Width < 1 || g.Height < 1 || g.BytesPerSample < 2 {
		return fmt.Errorf("%w: %dx%d with %d bytes per sample", ErrInvalidGeometry, g.Width, g.Height, g.BytesPerSample)
	}
	return nil
}

func (g FrameGeometry) Pixels() int {
	return g.Width * g.Height
}

func (g FrameGeometry) FrameBytes() int {
	return g.Pixels() * g.BytesPerSample
}

// ReliabilityWindow bounds the distances a sensor trusts for one frame.
type ReliabilityWindow struct {
	Min uint16 `json:"min"`
	Max uint16 `json:"max"`
}

// FrameMeta is the per-frame metadata reported alongside the samples.
type FrameMeta struct {
	Seq         uint64 `json:"seq"`
	MinReliable uint16 `json:"min_reliable"`
	MaxReliable uint16 `json:"max_reliable"`
	MaxDepth    uint16 `json:"max_depth"`
}

// DepthPolicy selects the upper bound of the reliability window.
type DepthPolicy string

const (
	PolicyReliable  DepthPolicy = "reliable"
	PolicyFullRange DepthPolicy = "full-range"
)

func ParseDepthPolicy(value string) (DepthPolicy, error) {
	switch DepthPolicy(value) {
	case PolicyReliable, "":
		return PolicyReliable, nil
	case PolicyFullRange:
		return PolicyFullRange, nil
	default:
		return "", fmt.Errorf("unknown depth policy %q", value)
	}
}

// Window derives the reliability window for meta under the policy.
func (p DepthPolicy) Window(meta FrameMeta) ReliabilityWindow {
	if p == PolicyFullRange {
		return ReliabilityWindow{Min: meta.MinReliable, Max: meta.MaxDepth}
	}
	return ReliabilityWindow{Min: meta.MinReliable, Max: meta.MaxReliable}
}
