package ensemble

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/metrics"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
	"github.com/YuminosukeSato/qsarkit/sklearn/tree"
)

const boostingName = "GradientBoostingRegressor"

// GradientBoostingRegressor fits shallow trees to least-squares residuals.
//
//	F_0(x) = mean(y)
//	F_m(x) = F_{m-1}(x) + LearningRate * h_m(x)
//
// With Subsample < 1 every stage sees a random fraction of the rows drawn
// without replacement (stochastic gradient boosting).
type GradientBoostingRegressor struct {
	State *model.StateManager

	NEstimators  int
	LearningRate float64
	Subsample    float64
	Tree         tree.Params

	Init       float64
	Estimators []*tree.DecisionTreeRegressor
}

// BoostingOption configures a GradientBoostingRegressor.
type BoostingOption func(*GradientBoostingRegressor)

// WithStages sets the number of boosting stages.
func WithStages(n int) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.NEstimators = n }
}

// WithLearningRate sets the shrinkage applied to every stage.
func WithLearningRate(lr float64) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.LearningRate = lr }
}

// WithSubsample sets the row fraction used per stage.
func WithSubsample(frac float64) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.Subsample = frac }
}

// WithStageParams replaces the per-stage tree hyperparameters.
func WithStageParams(p tree.Params) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.Tree = p }
}

// WithBoostingRandomState seeds row and feature subsampling.
func WithBoostingRandomState(seed uint64) BoostingOption {
	return func(g *GradientBoostingRegressor) { g.Tree.RandomState = seed }
}

// NewGradientBoostingRegressor creates an unfitted model with scikit-learn's
// defaults (100 stages, learning rate 0.1, depth 3).
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	p := tree.DefaultParams()
	p.MaxDepth = 3
	g := &GradientBoostingRegressor{
		State:        model.NewStateManager(),
		NEstimators:  100,
		LearningRate: 0.1,
		Subsample:    1.0,
		Tree:         p,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GradientBoostingRegressor) validate() error {
	switch {
	case g.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", g.NEstimators)
	case !(g.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be > 0", g.LearningRate)
	case !(g.Subsample > 0 && g.Subsample <= 1):
		return errors.NewValidationError("subsample", "must be in (0, 1]", g.Subsample)
	}
	return g.Tree.Validate()
}

// Fit runs the boosting stages sequentially.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	if err := g.validate(); err != nil {
		return err
	}
	yv, err := targets("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	b := tree.NewBinned(X, g.Tree.MaxBins)
	rng := rand.New(rand.NewPCG(g.Tree.RandomState, g.Tree.RandomState))

	g.Init = stat.Mean(yv, nil)
	current := make([]float64, rows)
	for i := range current {
		current[i] = g.Init
	}
	residual := make([]float64, rows)
	perm := make([]int, rows)
	for i := range perm {
		perm[i] = i
	}
	nSub := max(1, int(g.Subsample*float64(rows)))

	logger := log.GetLogger().With(log.ModelNameKey, boostingName)
	estimators := make([]*tree.DecisionTreeRegressor, 0, g.NEstimators)
	for m := 0; m < g.NEstimators; m++ {
		for i := range residual {
			residual[i] = yv[i] - current[i]
		}
		var sample []int
		if nSub < rows {
			rng.Shuffle(rows, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
			sample = perm[:nSub]
		}
		p := g.Tree
		p.RandomState = treeSeed(g.Tree.RandomState, m)
		t := &tree.DecisionTreeRegressor{State: model.NewStateManager(), Params: p}
		if err := t.FitBinned(b, residual, sample); err != nil {
			return errors.Wrapf(err, "stage %d", m)
		}
		step, err := t.PredictVec(X)
		if err != nil {
			return err
		}
		for i := range current {
			current[i] += g.LearningRate * step[i]
		}
		estimators = append(estimators, t)

		if logger.Enabled(context.Background(), log.LevelDebug) && (m+1)%25 == 0 {
			logger.Debug("Boosting progress",
				log.IterationKey, m+1,
				"train_mse", meanSquared(yv, current),
			)
		}
	}

	g.Estimators = estimators
	g.State.SetDimensions(cols, rows)
	g.State.SetFitted()
	return nil
}

// Predict returns F_M(X) as an n×1 matrix.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := g.State.RequireFitted(boostingName, "Predict"); err != nil {
		return nil, err
	}
	if err := g.State.CheckFeatures("GradientBoostingRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = g.Init
	}
	for _, t := range g.Estimators {
		step, err := t.PredictVec(X)
		if err != nil {
			return nil, err
		}
		for i, v := range step {
			out[i] += g.LearningRate * v
		}
	}
	return mat.NewDense(rows, 1, out), nil
}

// Score returns R² on X, y.
func (g *GradientBoostingRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := g.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted reports whether Fit has completed.
func (g *GradientBoostingRegressor) IsFitted() bool { return g.State.IsFitted() }

// GetParams returns boosting and tree hyperparameters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	p := (&tree.DecisionTreeRegressor{Params: g.Tree}).GetParams()
	p["n_estimators"] = g.NEstimators
	p["learning_rate"] = g.LearningRate
	p["subsample"] = g.Subsample
	return p
}

// SetParams updates hyperparameters and resets the fitted state. On error
// nothing is changed.
func (g *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	next := *g
	treeParams := map[string]interface{}{}
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			next.NEstimators, err = model.IntParam(k, v)
		case "learning_rate":
			next.LearningRate, err = model.FloatParam(k, v)
		case "subsample":
			next.Subsample, err = model.FloatParam(k, v)
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
	if err := next.validate(); err != nil {
		return err
	}
	g.NEstimators, g.LearningRate, g.Subsample, g.Tree = next.NEstimators, next.LearningRate, next.Subsample, next.Tree
	g.Init, g.Estimators = 0, nil
	g.State.Reset()
	return nil
}

func meanSquared(y, pred []float64) float64 {
	s := 0.0
	for i := range y {
		d := y[i] - pred[i]
		s += d * d
	}
	return s / float64(len(y))
}
