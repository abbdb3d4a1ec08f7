package processing

import (
	"encoding/binary"
	"sort"

	"depthview-go/internal/types"
)

const (
	NearLimit = 800
	FarLimit  = 1100
	BandWidth = 20
	BandCount = (FarLimit - NearLimit) / BandWidth

	// OutOfRangeIndex is written for reliable depths outside (NearLimit, FarLimit].
	// It shares its colour with band 1.
	OutOfRangeIndex uint8 = 1
	// FarIndex is written for depths beyond the reliability window.
	FarIndex uint8 = 6
)

// Thresholds are the band edges; band k covers (Thresholds[k], Thresholds[k+1]].
var Thresholds = buildThresholds()

var bandTable = buildBandTable()

func buildThresholds() []uint16 {
	out := make([]uint16, BandCount+1)
	for k := range out {
		out[k] = uint16(NearLimit + k*BandWidth)
	}
	return out
}

func buildBandTable() *[1 << 16]uint8 {
	var table [1 << 16]uint8
	for d := range table {
		table[d] = classify(uint16(d))
	}
	return &table
}

func classify(depth uint16) uint8 {
	k := sort.Search(len(Thresholds), func(i int) bool { return Thresholds[i] >= depth }) - 1
	if k < 0 || k >= BandCount {
		return OutOfRangeIndex
	}
	return uint8(k)
}

// Band returns the colour index of a depth that lies inside the reliability window.
func Band(depth uint16) uint8 {
	return bandTable[depth]
}

// MapDepth writes one colour index per sample of raw into index. Samples at
// or below w.Min, and samples equal to w.Max, leave their index untouched.
// raw and index must already have passed Validate for g. Geometries with
// fewer than two bytes per sample carry no depth and map nothing.
func MapDepth(raw []byte, w types.ReliabilityWindow, g types.FrameGeometry, index []byte) {
	stride := g.BytesPerSample
	if stride < 2 {
		return
	}
	n := len(raw) / stride
	if n > len(index) {
		n = len(index)
	}
	table := bandTable
	for i := 0; i < n; i++ {
		depth := binary.LittleEndian.Uint16(raw[i*stride:])
		if depth > w.Min && depth < w.Max {
			index[i] = table[depth]
		} else if depth > w.Max {
			index[i] = FarIndex
		}
	}
}
