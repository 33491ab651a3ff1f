// Package explore provides read-only summaries of a prepared dataset:
// value histograms, top compounds and scaffold statistics.
package explore

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/qsarkit/dataset"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// Bin is one histogram bucket [Lo, Hi). The last bin is closed.
type Bin struct {
	Lo, Hi float64
	Count  int
}

// Histogram counts values into bins equal-width buckets spanning their range.
func Histogram(values []float64, bins int) ([]Bin, error) {
	if bins <= 0 {
		return nil, errors.NewValidationError("bins", "must be > 0", bins)
	}
	if len(values) == 0 {
		return nil, errors.NewDataError("histogram", "", 0, errors.ErrEmptyData)
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		hi = lo + 1
	}
	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram treats the upper divider as exclusive.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, x, nil)
	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lo: dividers[i], Hi: dividers[i+1], Count: int(counts[i])}
	}
	out[bins-1].Hi = hi
	return out, nil
}

// Ranked is a record with its position in a TopK listing.
type Ranked struct {
	Rank     int
	Record   dataset.Record
	SMILES   string // standardized
	Scaffold string
}

// TopK returns the k records with the highest target values, ties ordered by
// record ID. k larger than the dataset returns every record.
func TopK(ds *dataset.Dataset, k int) []Ranked {
	idx := make([]int, ds.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := ds.Records[idx[a]], ds.Records[idx[b]]
		if ra.Value != rb.Value {
			return ra.Value > rb.Value
		}
		return ra.ID < rb.ID
	})
	if k < len(idx) {
		idx = idx[:max(k, 0)]
	}
	out := make([]Ranked, len(idx))
	for r, i := range idx {
		out[r] = Ranked{Rank: r + 1, Record: ds.Records[i]}
		if i < len(ds.Standardized) {
			out[r].SMILES = ds.Standardized[i]
		}
		if i < len(ds.Scaffolds) {
			out[r].Scaffold = ds.Scaffolds[i]
		}
	}
	return out
}

// ScaffoldGroup aggregates the records sharing one scaffold.
type ScaffoldGroup struct {
	Scaffold string
	Mean     float64
	Count    int
	Members  []int // dataset row indices
}

// ScaffoldSummary groups records by scaffold and keeps groups with more than
// minCount members, sorted by mean value descending then by scaffold.
// Acyclic compounds share the empty scaffold and are grouped like any other.
func ScaffoldSummary(ds *dataset.Dataset, minCount int) []ScaffoldGroup {
	members := map[string][]int{}
	for i, sc := range ds.Scaffolds {
		members[sc] = append(members[sc], i)
	}
	var out []ScaffoldGroup
	for sc, idx := range members {
		if len(idx) <= minCount {
			continue
		}
		vals := make([]float64, len(idx))
		for k, i := range idx {
			vals[k] = ds.Records[i].Value
		}
		out = append(out, ScaffoldGroup{
			Scaffold: sc,
			Mean:     stat.Mean(vals, nil),
			Count:    len(idx),
			Members:  idx,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Mean != out[b].Mean {
			return out[a].Mean > out[b].Mean
		}
		return out[a].Scaffold < out[b].Scaffold
	})
	return out
}

// ScaffoldMembers returns the records of the group at position index of a
// ScaffoldSummary result.
func ScaffoldMembers(ds *dataset.Dataset, groups []ScaffoldGroup, index int) ([]dataset.Record, error) {
	if index < 0 || index >= len(groups) {
		return nil, errors.NewValidationError("scaffold_index", "out of range", index)
	}
	out := make([]dataset.Record, len(groups[index].Members))
	for k, i := range groups[index].Members {
		out[k] = ds.Records[i]
	}
	return out, nil
}

// Description holds summary statistics of the target values.
type Description struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Median float64
	Max    float64
}

// Describe summarizes values. Std is the sample standard deviation and is
// NaN for fewer than two values.
func Describe(values []float64) (Description, error) {
	if len(values) == 0 {
		return Description{}, errors.NewDataError("describe", "", 0, errors.ErrEmptyData)
	}
	x := append([]float64(nil), values...)
	sort.Float64s(x)
	d := Description{
		Count:  len(x),
		Mean:   stat.Mean(x, nil),
		Min:    x[0],
		Max:    x[len(x)-1],
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		Std:    math.NaN(),
	}
	if len(x) > 1 {
		d.Std = stat.StdDev(x, nil)
	}
	return d, nil
}
