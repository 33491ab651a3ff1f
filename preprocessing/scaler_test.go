package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{
		1, 0, 10,
		2, 0, 20,
		3, 1, 30,
		4, 1, 40,
	})

	tests := []struct {
		name      string
		withMean  bool
		withStd   bool
		wantMean  []float64
		wantScale []float64
	}{
		{"mean and std", true, true, []float64{2.5, 0.5, 25}, []float64{math.Sqrt(1.25), 0.5, math.Sqrt(125)}},
		{"std only", false, true, []float64{0, 0, 0}, []float64{math.Sqrt(1.25), 0.5, math.Sqrt(125)}},
		{"mean only", true, false, []float64{2.5, 0.5, 25}, []float64{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStandardScaler(tt.withMean, tt.withStd)
			Xs, err := s.FitTransform(X)
			if err != nil {
				t.Fatalf("FitTransform() error: %v", err)
			}
			for j := range tt.wantMean {
				if math.Abs(s.Mean[j]-tt.wantMean[j]) > 1e-12 || math.Abs(s.Scale[j]-tt.wantScale[j]) > 1e-12 {
					t.Errorf("feature %d: mean %v scale %v, want %v %v", j, s.Mean[j], s.Scale[j], tt.wantMean[j], tt.wantScale[j])
				}
			}
			back, err := s.InverseTransform(Xs)
			if err != nil {
				t.Fatal(err)
			}
			if !mat.EqualApprox(back, X, 1e-10) {
				t.Errorf("InverseTransform(Transform(X)) != X")
			}
		})
	}
}

func TestStandardScalerConstantColumn(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 5, 1, 6, 1, 7})
	s := NewStandardScaler(true, true)
	Xs, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	if s.Scale[0] != 1 || Xs.At(0, 0) != 0 {
		t.Errorf("constant column scale = %v, value = %v", s.Scale[0], Xs.At(0, 0))
	}
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScaler(true, true)
	var nf *errors.NotFittedError
	if _, err := s.Transform(mat.NewDense(1, 1, nil)); !errors.As(err, &nf) {
		t.Errorf("Transform before Fit = %v, want NotFittedError", err)
	}
	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	var de *errors.DimensionError
	if _, err := s.Transform(mat.NewDense(1, 3, nil)); !errors.As(err, &de) {
		t.Errorf("Transform with wrong width = %v, want DimensionError", err)
	}
}
