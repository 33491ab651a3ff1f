// Package model_selection provides k-fold splitting and cross-validated
// prediction and scoring for the regressors in sklearn/.
package model_selection

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// Fold holds the row indices of one cross-validation fold.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter yields cross-validation folds for n samples.
type Splitter interface {
	Split(n int) ([]Fold, error)
	GetNSplits() int
}

// KFold splits samples into NSplits consecutive folds, optionally after a
// seeded shuffle. The first n % NSplits folds get one extra sample.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed uint64
}

// NewKFold creates a k-fold splitter. nSplits < 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed uint64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// GetNSplits returns the number of folds.
func (kf *KFold) GetNSplits() int { return kf.NSplits }

// Split returns NSplits folds whose test sets partition [0, n).
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be >= 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.RandomSeed, kf.RandomSeed))
		r.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]Fold, kf.NSplits)
	foldSize, remainder := n/kf.NSplits, n%kf.NSplits
	start := 0
	for k := range folds {
		size := foldSize
		if k < remainder {
			size++
		}
		end := start + size
		test := append([]int(nil), indices[start:end]...)
		train := make([]int, 0, n-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[end:]...)
		folds[k] = Fold{TrainIndices: train, TestIndices: test}
		start = end
	}
	return folds, nil
}

// Rows copies the given rows of X into a new matrix.
func Rows(X mat.Matrix, idx []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	if d, ok := X.(mat.RawRowViewer); ok {
		for k, i := range idx {
			out.SetRow(k, d.RawRowView(i))
		}
		return out
	}
	for k, i := range idx {
		for j := 0; j < cols; j++ {
			out.Set(k, j, X.At(i, j))
		}
	}
	return out
}
