package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DefaultMaxBins bounds the number of candidate split points per feature.
const DefaultMaxBins = 255

// Binned is a feature matrix quantized into ordered bins. Codes are stored
// feature-major so that building a histogram for one feature walks one slice.
// A sample falls in bin b of feature f iff its value is <= Thresholds[f][b]
// (and greater than the previous threshold); the last bin is unbounded.
type Binned struct {
	Rows, Cols int
	Thresholds [][]float64
	Codes      [][]uint8
}

// NewBinned quantizes X. Features with at most maxBins distinct values get
// one bin per value; others are cut at quantiles.
func NewBinned(X mat.Matrix, maxBins int) *Binned {
	if maxBins <= 1 || maxBins > 256 {
		maxBins = DefaultMaxBins
	}
	rows, cols := X.Dims()
	b := &Binned{
		Rows:       rows,
		Cols:       cols,
		Thresholds: make([][]float64, cols),
		Codes:      make([][]uint8, cols),
	}
	col := make([]float64, rows)
	for f := 0; f < cols; f++ {
		for i := 0; i < rows; i++ {
			col[i] = X.At(i, f)
		}
		th := splitThresholds(col, maxBins)
		codes := make([]uint8, rows)
		for i, v := range col {
			codes[i] = uint8(binOf(th, v))
		}
		b.Thresholds[f] = th
		b.Codes[f] = codes
	}
	return b
}

// splitThresholds returns midpoints between consecutive distinct values, or
// between quantile cut values when there are more than maxBins of them.
func splitThresholds(values []float64, maxBins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	unique := []float64{sorted[0]}
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	cuts := unique
	if len(unique) > maxBins {
		cuts = make([]float64, 0, maxBins)
		for k := 0; k < maxBins; k++ {
			v := sorted[(len(sorted)-1)*k/(maxBins-1)]
			if len(cuts) == 0 || v > cuts[len(cuts)-1] {
				cuts = append(cuts, v)
			}
		}
	}
	th := make([]float64, len(cuts)-1)
	for i := range th {
		th[i] = cuts[i] + (cuts[i+1]-cuts[i])/2
	}
	return th
}

func binOf(th []float64, v float64) int {
	return sort.Search(len(th), func(i int) bool { return v <= th[i] })
}
