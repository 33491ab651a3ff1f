package model_selection

import (
	"context"
	"math"
	"slices"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/sklearn/tree"
)

func TestKFold_Split(t *testing.T) {
	tests := []struct {
		name      string
		n, k      int
		shuffle   bool
		wantSizes []int
	}{
		{"even", 10, 5, false, []int{2, 2, 2, 2, 2}},
		{"remainder goes to first folds", 11, 3, false, []int{4, 4, 3}},
		{"shuffled", 23, 5, true, []int{5, 5, 5, 4, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folds, err := NewKFold(tt.k, tt.shuffle, 42).Split(tt.n)
			if err != nil {
				t.Fatalf("Split() error: %v", err)
			}
			seen := make([]int, tt.n)
			for k, f := range folds {
				if len(f.TestIndices) != tt.wantSizes[k] {
					t.Errorf("fold %d test size = %d, want %d", k, len(f.TestIndices), tt.wantSizes[k])
				}
				if len(f.TrainIndices)+len(f.TestIndices) != tt.n {
					t.Errorf("fold %d does not cover all samples", k)
				}
				for _, i := range f.TestIndices {
					seen[i]++
					if slices.Contains(f.TrainIndices, i) {
						t.Errorf("fold %d: sample %d in both train and test", k, i)
					}
				}
			}
			for i, c := range seen {
				if c != 1 {
					t.Errorf("sample %d tested %d times, want 1", i, c)
				}
			}
		})
	}

	a, _ := NewKFold(4, true, 7).Split(20)
	b, _ := NewKFold(4, true, 7).Split(20)
	for k := range a {
		if !slices.Equal(a[k].TestIndices, b[k].TestIndices) {
			t.Fatalf("same seed gave different fold %d", k)
		}
	}

	if _, err := NewKFold(5, false, 0).Split(3); err == nil {
		t.Error("expected error when n < n_splits")
	}
}

func TestCrossValPredict(t *testing.T) {
	n := 30
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i%2))
		y.Set(i, 0, 3+4*float64(i%2))
	}
	factory := func() (model.Regressor, error) { return tree.NewDecisionTreeRegressor(), nil }

	res, err := CrossValPredict(context.Background(), factory, X, y, NewKFold(3, true, 1))
	if err != nil {
		t.Fatalf("CrossValPredict() error: %v", err)
	}
	for i, p := range res.Predictions {
		if math.Abs(p-y.At(i, 0)) > 1e-12 {
			t.Errorf("pred[%d] = %v, want %v", i, p, y.At(i, 0))
		}
	}
	if len(res.Scores) != 3 {
		t.Fatalf("scores = %d, want 3", len(res.Scores))
	}
	for k, s := range res.Scores {
		if math.Abs(s-1) > 1e-12 {
			t.Errorf("fold %d R2 = %v, want 1", k, s)
		}
	}

	scores, err := CrossValScore(context.Background(), factory, X, y, NewKFold(5, false, 0))
	if err != nil || len(scores) != 5 {
		t.Errorf("CrossValScore() = %v, %v", scores, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CrossValPredict(ctx, factory, X, y, NewKFold(3, false, 0)); err == nil {
		t.Error("expected error for cancelled context")
	}
}
