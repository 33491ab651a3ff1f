package linear_model

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// linearData returns y = 3 + 2*x0 - x1 (+ 0.5*x2) without noise.
func linearData(n, d int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(7, 7))
	X := mat.NewDense(n, d, nil)
	y := mat.NewDense(n, 1, nil)
	coef := []float64{2, -1, 0.5}
	for i := 0; i < n; i++ {
		v := 3.0
		for j := 0; j < d; j++ {
			x := rng.Float64()
			X.Set(i, j, x)
			if j < len(coef) {
				v += coef[j] * x
			}
		}
		y.Set(i, 0, v)
	}
	return X, y
}

func TestRidgeRecoversCoefficients(t *testing.T) {
	X, y := linearData(50, 3)
	tests := []struct {
		name string
		opts []RidgeOption
	}{
		{"plain", []RidgeOption{WithAlpha(1e-8)}},
		{"standardized", []RidgeOption{WithAlpha(1e-8), WithStandardize(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRidge(tt.opts...)
			if err := r.Fit(X, y); err != nil {
				t.Fatalf("Fit() error: %v", err)
			}
			score, err := r.Score(X, y)
			if err != nil {
				t.Fatal(err)
			}
			if score < 0.999999 {
				t.Errorf("R2 = %v, want ~1", score)
			}
			if !r.Standardize {
				for j, want := range []float64{2, -1, 0.5} {
					if math.Abs(r.Coef[j]-want) > 1e-4 {
						t.Errorf("coef[%d] = %v, want %v", j, r.Coef[j], want)
					}
				}
				if math.Abs(r.Intercept-3) > 1e-4 {
					t.Errorf("intercept = %v, want 3", r.Intercept)
				}
			}
		})
	}
}

func TestRidgeDualMatchesPrimal(t *testing.T) {
	// 8 samples, 20 features: the dual form is used.
	Xw, y := linearData(8, 20)
	wide := NewRidge(WithAlpha(0.5))
	if err := wide.Fit(Xw, y); err != nil {
		t.Fatalf("dual Fit() error: %v", err)
	}
	// 主形式の閉形式解と比較する
	rows, cols := Xw.Dims()
	xm := make([]float64, cols)
	for j := range xm {
		xm[j] = mat.Sum(Xw.ColView(j)) / float64(rows)
	}
	ym := mat.Sum(y) / float64(rows)
	Xc := mat.DenseCopyOf(Xw)
	Xc.Apply(func(_, j int, v float64) float64 { return v - xm[j] }, Xc)
	yc := mat.NewVecDense(rows, nil)
	for i := 0; i < rows; i++ {
		yc.SetVec(i, y.At(i, 0)-ym)
	}
	var A mat.Dense
	A.Mul(Xc.T(), Xc)
	for i := 0; i < cols; i++ {
		A.Set(i, i, A.At(i, i)+0.5)
	}
	var b, w mat.VecDense
	b.MulVec(Xc.T(), yc)
	if err := w.SolveVec(&A, &b); err != nil {
		t.Fatal(err)
	}
	for j := 0; j < cols; j++ {
		if math.Abs(w.AtVec(j)-wide.Coef[j]) > 1e-8 {
			t.Fatalf("coef[%d] = %v, want %v", j, wide.Coef[j], w.AtVec(j))
		}
	}
}

func TestRidgeShrinks(t *testing.T) {
	X, y := linearData(40, 3)
	norm := func(alpha float64) float64 {
		r := NewRidge(WithAlpha(alpha))
		if err := r.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		return mat.Norm(mat.NewVecDense(len(r.Coef), r.Coef), 2)
	}
	if small, large := norm(0.01), norm(100); large >= small {
		t.Errorf("|w| with alpha=100 (%v) should be below alpha=0.01 (%v)", large, small)
	}
}

func TestRidgeErrors(t *testing.T) {
	X, y := linearData(10, 2)
	var nf *errors.NotFittedError
	if _, err := NewRidge().Predict(X); !errors.As(err, &nf) {
		t.Errorf("Predict before Fit = %v, want NotFittedError", err)
	}
	if err := NewRidge(WithAlpha(-1)).Fit(X, y); err == nil {
		t.Error("expected error for negative alpha")
	}
	r := NewRidge()
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	var de *errors.DimensionError
	if _, err := r.Predict(mat.NewDense(1, 3, nil)); !errors.As(err, &de) {
		t.Errorf("Predict with wrong width = %v, want DimensionError", err)
	}
	// 定数列は中心化でゼロになり、alpha = 0 だと正規方程式は特異になる
	constant := mat.NewDense(4, 2, []float64{1, 5, 1, 6, 1, 7, 1, 8})
	var ni *errors.NumericalInstabilityError
	if err := NewRidge(WithAlpha(0)).Fit(constant, mat.NewDense(4, 1, []float64{1, 2, 3, 4})); !errors.As(err, &ni) {
		t.Errorf("singular system = %v, want NumericalInstabilityError", err)
	}
}

func TestRidgeParams(t *testing.T) {
	r := NewRidge()
	if err := r.SetParams(map[string]interface{}{"alpha": 3.0, "standardize": true}); err != nil {
		t.Fatal(err)
	}
	got := r.GetParams()
	if got["alpha"] != 3.0 || got["standardize"] != true || got["fit_intercept"] != true {
		t.Errorf("GetParams() = %v", got)
	}
	for _, bad := range []map[string]interface{}{
		{"alpha": -0.1},
		{"alpha": "big"},
		{"fit_intercept": 1},
		{"solver": "svd"},
	} {
		if err := r.SetParams(bad); err == nil {
			t.Errorf("SetParams(%v) accepted", bad)
		}
	}
	if r.Alpha != 3.0 {
		t.Errorf("failed SetParams changed alpha to %v", r.Alpha)
	}
}

func TestRidgeGobRoundTrip(t *testing.T) {
	X, y := linearData(30, 3)
	r := NewRidge(WithAlpha(0.1), WithStandardize(true), WithFitIntercept(false))
	if err := r.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(r, &buf); err != nil {
		t.Fatal(err)
	}
	loaded := &Ridge{}
	if err := model.LoadModelFromReader(loaded, &buf); err != nil {
		t.Fatal(err)
	}
	if loaded.FitIntercept || !loaded.Standardize {
		t.Errorf("loaded params = %v", loaded.GetParams())
	}
	want, _ := r.Predict(X)
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Error("loaded model predicts differently")
	}
}
