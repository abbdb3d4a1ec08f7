package processing

import (
	"gonum.org/v1/gonum/stat"

	"depthview-go/internal/palette"
)

// BandStats summarises how an index image is spread over the palette.
type BandStats struct {
	Counts [palette.Size]int `json:"counts"`
	Mean   float64           `json:"mean"`
	StdDev float64           `json:"std_dev"`
	Mode   int               `json:"mode"`
}

func ComputeBandStats(index []byte) BandStats {
	var s BandStats
	for _, v := range index {
		s.Counts[int(v)%palette.Size]++
	}
	if len(index) == 0 {
		return s
	}
	if len(index) == 1 {
		s.Mode = int(index[0]) % palette.Size
		s.Mean = float64(s.Mode)
		return s
	}
	x := make([]float64, palette.Size)
	weights := make([]float64, palette.Size)
	for i, c := range s.Counts {
		x[i] = float64(i)
		weights[i] = float64(c)
		if c > s.Counts[s.Mode] {
			s.Mode = i
		}
	}
	s.Mean, s.StdDev = stat.MeanStdDev(x, weights)
	return s
}
