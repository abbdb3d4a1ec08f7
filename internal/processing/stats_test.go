package processing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBandStats(t *testing.T) {
	s := ComputeBandStats([]byte{1, 1, 6, 6, 6})
	assert.Equal(t, 2, s.Counts[1])
	assert.Equal(t, 3, s.Counts[6])
	assert.Equal(t, 6, s.Mode)
	assert.InDelta(t, 4.0, s.Mean, 1e-9)
	// Sample (n-1) standard deviation of {1,1,6,6,6}.
	assert.InDelta(t, math.Sqrt(7.5), s.StdDev, 1e-9)
}

func TestComputeBandStatsSmallInputs(t *testing.T) {
	assert.Equal(t, BandStats{}, ComputeBandStats(nil))

	one := ComputeBandStats([]byte{9})
	assert.Equal(t, 9, one.Mode)
	assert.Equal(t, 9.0, one.Mean)
	assert.Zero(t, one.StdDev)
	assert.Equal(t, 1, one.Counts[9])
}

func TestComputeBandStatsUniform(t *testing.T) {
	s := ComputeBandStats([]byte{3, 3, 3})
	assert.Equal(t, 3, s.Mode)
	assert.InDelta(t, 3.0, s.Mean, 1e-9)
	assert.InDelta(t, 0.0, s.StdDev, 1e-9)
}
