// Package linear_model implements penalized linear regressors.
package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/metrics"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/preprocessing"
)

const ridgeName = "Ridge"

// Ridge は L2 正則化付き最小二乗回帰。
// 特徴量数がサンプル数を超える場合（フィンガープリントでは普通）は
// 双対形式 w = Xᵀ(XXᵀ + αI)⁻¹y で解く。
type Ridge struct {
	State *model.StateManager

	Alpha        float64
	FitIntercept bool
	// Standardize scales every feature to unit variance before fitting.
	Standardize bool

	Scaler    *preprocessing.StandardScaler
	Coef      []float64
	Intercept float64
}

// RidgeOption configures a Ridge model.
type RidgeOption func(*Ridge)

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) RidgeOption {
	return func(r *Ridge) { r.Alpha = alpha }
}

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) RidgeOption {
	return func(r *Ridge) { r.FitIntercept = fit }
}

// WithStandardize は学習前に特徴量を標準化するかを設定
func WithStandardize(on bool) RidgeOption {
	return func(r *Ridge) { r.Standardize = on }
}

// NewRidge creates an unfitted model with alpha = 1 and an intercept.
func NewRidge(opts ...RidgeOption) *Ridge {
	r := &Ridge{State: model.NewStateManager(), Alpha: 1.0, FitIntercept: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit はモデルを訓練データで学習
func (r *Ridge) Fit(X, y mat.Matrix) error {
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be >= 0", r.Alpha)
	}
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return errors.NewDimensionError("Ridge.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("Ridge.Fit", 1, yCols, 1)
	}
	if rows == 0 {
		return errors.NewDataError("Ridge.Fit", "", 0, errors.ErrEmptyData)
	}
	if r.State == nil {
		r.State = model.NewStateManager()
	}

	Xc := mat.DenseCopyOf(X)
	r.Scaler = nil
	if r.Standardize {
		r.Scaler = preprocessing.NewStandardScaler(false, true)
		if err := r.Scaler.Fit(Xc); err != nil {
			return err
		}
		scaled, err := r.Scaler.Transform(Xc)
		if err != nil {
			return err
		}
		Xc = scaled
	}

	yc := mat.NewVecDense(rows, mat.Col(nil, 0, y))
	xMean := make([]float64, cols)
	yMean := 0.0
	if r.FitIntercept {
		for j := range xMean {
			xMean[j] = mat.Sum(Xc.ColView(j)) / float64(rows)
		}
		yMean = mat.Sum(yc) / float64(rows)
		Xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, Xc)
		yc.AddScaledVec(yc, -1, mat.NewVecDense(rows, filled(rows, yMean)))
	}

	w, err := r.solve(Xc, yc)
	if err != nil {
		return err
	}
	r.Coef = w.RawVector().Data
	r.Intercept = yMean - mat.Dot(mat.NewVecDense(cols, xMean), w)

	r.State.SetDimensions(cols, rows)
	r.State.SetFitted()
	return nil
}

// solve は正規方程式をコレスキー分解で解く。行列の小さい側を選ぶ。
func (r *Ridge) solve(X *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	rows, cols := X.Dims()
	var (
		gram mat.SymDense
		rhs  mat.VecDense
	)
	primal := rows >= cols
	if primal {
		gram.SymOuterK(1, X.T()) // XᵀX
		rhs.MulVec(X.T(), y)
	} else {
		gram.SymOuterK(1, X) // XXᵀ
		rhs.CloneFromVec(y)
	}
	n := gram.SymmetricDim()
	for i := 0; i < n; i++ {
		gram.SetSym(i, i, gram.At(i, i)+r.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, errors.NewNumericalInstabilityError("Ridge.Fit", []float64{r.Alpha}, 0)
	}
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, &rhs); err != nil {
		return nil, errors.NewModelError("Ridge.Fit", "solve", err)
	}
	if primal {
		return &sol, nil
	}
	w := mat.NewVecDense(cols, nil)
	w.MulVec(X.T(), &sol)
	return w, nil
}

// Predict は入力データに対する予測を n×1 行列で返す
func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if r.State == nil {
		return nil, errors.NewNotFittedError(ridgeName, "Predict")
	}
	if err := r.State.RequireFitted(ridgeName, "Predict"); err != nil {
		return nil, err
	}
	if err := r.State.CheckFeatures("Ridge.Predict", X); err != nil {
		return nil, err
	}
	if r.Scaler != nil {
		scaled, err := r.Scaler.Transform(X)
		if err != nil {
			return nil, err
		}
		X = scaled
	}
	rows, _ := X.Dims()
	out := mat.NewVecDense(rows, nil)
	out.MulVec(X, mat.NewVecDense(len(r.Coef), r.Coef))
	out.AddVec(out, mat.NewVecDense(rows, filled(rows, r.Intercept)))
	return mat.NewDense(rows, 1, out.RawVector().Data), nil
}

// Score はモデルの決定係数（R²）を計算
func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	pred, err := r.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted returns whether the model has been fitted.
func (r *Ridge) IsFitted() bool { return r.State != nil && r.State.IsFitted() }

// GetParams returns the hyperparameters (scikit-learn names).
func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         r.Alpha,
		"fit_intercept": r.FitIntercept,
		"standardize":   r.Standardize,
	}
}

// SetParams updates hyperparameters and resets the fitted state. Nothing
// changes when an entry is invalid.
func (r *Ridge) SetParams(params map[string]interface{}) error {
	next := *r
	for k, v := range params {
		switch k {
		case "alpha":
			a, err := model.FloatParam(k, v)
			if err != nil {
				return err
			}
			if a < 0 {
				return errors.NewValidationError(k, "must be >= 0", v)
			}
			next.Alpha = a
		case "fit_intercept", "standardize":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a bool", v)
			}
			if k == "fit_intercept" {
				next.FitIntercept = b
			} else {
				next.Standardize = b
			}
		default:
			return model.UnknownParam(ridgeName, k)
		}
	}
	r.Alpha, r.FitIntercept, r.Standardize = next.Alpha, next.FitIntercept, next.Standardize
	if r.State != nil {
		r.State.Reset()
	}
	return nil
}

// String returns the string representation of the model.
func (r *Ridge) String() string {
	return fmt.Sprintf("Ridge(alpha=%g, fit_intercept=%t, standardize=%t)", r.Alpha, r.FitIntercept, r.Standardize)
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
