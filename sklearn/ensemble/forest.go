// Package ensemble provides tree ensembles for regression: a bootstrap
// aggregated random forest and least-squares gradient boosting.
package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/core/parallel"
	"github.com/YuminosukeSato/qsarkit/metrics"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
	"github.com/YuminosukeSato/qsarkit/sklearn/tree"
)

const forestName = "RandomForestRegressor"

// RandomForestRegressor averages decision trees grown on bootstrap samples.
// Each tree gets its own seed derived from RandomState, so the fitted forest
// does not depend on how trees are scheduled across workers.
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators int
	Bootstrap   bool
	NJobs       int // 0 = one worker per CPU
	Tree        tree.Params

	Estimators  []*tree.DecisionTreeRegressor
	Importances []float64
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.NEstimators = n }
}

// WithBootstrap toggles bootstrap sampling of rows.
func WithBootstrap(b bool) ForestOption {
	return func(f *RandomForestRegressor) { f.Bootstrap = b }
}

// WithNJobs sets the number of concurrent tree fits.
func WithNJobs(n int) ForestOption {
	return func(f *RandomForestRegressor) { f.NJobs = n }
}

// WithTreeParams replaces the per-tree hyperparameters.
func WithTreeParams(p tree.Params) ForestOption {
	return func(f *RandomForestRegressor) { f.Tree = p }
}

// WithForestRandomState seeds bootstrap and feature sampling.
func WithForestRandomState(seed uint64) ForestOption {
	return func(f *RandomForestRegressor) { f.Tree.RandomState = seed }
}

// NewRandomForestRegressor creates an unfitted forest with scikit-learn's
// defaults (100 trees, bootstrap, all features).
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	f := &RandomForestRegressor{
		State:       model.NewStateManager(),
		NEstimators: 100,
		Bootstrap:   true,
		Tree:        tree.DefaultParams(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows NEstimators trees concurrently.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	if err := f.Tree.Validate(); err != nil {
		return err
	}
	yv, err := targets("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	b := tree.NewBinned(X, f.Tree.MaxBins)

	logger := log.GetLogger().With(log.ModelNameKey, forestName)
	logger.Debug("Fitting forest",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"n_estimators", f.NEstimators,
	)

	estimators := make([]*tree.DecisionTreeRegressor, f.NEstimators)
	err = parallel.ForEach(f.NEstimators, f.NJobs, func(i int) error {
		seed := treeSeed(f.Tree.RandomState, i)
		p := f.Tree
		p.RandomState = seed
		t := &tree.DecisionTreeRegressor{State: model.NewStateManager(), Params: p}

		var sample []int
		if f.Bootstrap {
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			sample = make([]int, rows)
			for k := range sample {
				sample[k] = rng.IntN(rows)
			}
		}
		if err := t.FitBinned(b, yv, sample); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		estimators[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	f.Estimators = estimators
	f.Importances = make([]float64, cols)
	for _, t := range estimators {
		for j, v := range t.Importances {
			f.Importances[j] += v / float64(len(estimators))
		}
	}
	f.State.SetDimensions(cols, rows)
	f.State.SetFitted()
	return nil
}

// Predict returns the mean prediction of all trees as an n×1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted(forestName, "Predict"); err != nil {
		return nil, err
	}
	if err := f.State.CheckFeatures("RandomForestRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for _, t := range f.Estimators {
		pred, err := t.PredictVec(X)
		if err != nil {
			return nil, err
		}
		for i, v := range pred {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(f.Estimators))
	}
	return mat.NewDense(rows, 1, out), nil
}

// Score returns R² on X, y.
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestRegressor) IsFitted() bool { return f.State.IsFitted() }

// GetParams returns forest and tree hyperparameters with scikit-learn names.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	p := (&tree.DecisionTreeRegressor{Params: f.Tree}).GetParams()
	p["n_estimators"] = f.NEstimators
	p["bootstrap"] = f.Bootstrap
	p["n_jobs"] = f.NJobs
	return p
}

// SetParams updates hyperparameters and resets the fitted state. On error
// nothing is changed.
func (f *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	next := *f
	treeParams := map[string]interface{}{}
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			next.NEstimators, err = model.IntParam(k, v)
			if err == nil && next.NEstimators < 1 {
				err = errors.NewValidationError(k, "must be >= 1", v)
			}
		case "n_jobs":
			next.NJobs, err = model.IntParam(k, v)
		case "bootstrap":
			b, ok := v.(bool)
			if !ok {
				err = errors.NewValidationError(k, "must be a bool", v)
			}
			next.Bootstrap = b
		default:
			treeParams[k] = v
		}
		if err != nil {
			return err
		}
	}
	if err := next.Tree.Set(treeParams); err != nil {
		return err
	}
	f.NEstimators, f.NJobs, f.Bootstrap, f.Tree = next.NEstimators, next.NJobs, next.Bootstrap, next.Tree
	f.Estimators, f.Importances = nil, nil
	f.State.Reset()
	return nil
}

// treeSeed spreads the base seed across trees (splitmix64 step).
func treeSeed(base uint64, i int) uint64 {
	z := base + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func targets(op string, X, y mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if rows == 0 {
		return nil, errors.NewDataError(op, "", 0, errors.ErrEmptyData)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}
