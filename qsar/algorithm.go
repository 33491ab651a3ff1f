package qsar

import (
	"sort"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/sklearn/ensemble"
	"github.com/YuminosukeSato/qsarkit/sklearn/linear_model"
	"github.com/YuminosukeSato/qsarkit/sklearn/tree"
)

// Supported algorithm names.
const (
	AlgorithmRandomForest     = "RandomForestRegressor"
	AlgorithmGradientBoosting = "GradientBoostingRegressor"
	AlgorithmDecisionTree     = "DecisionTreeRegressor"
	AlgorithmRidge            = "Ridge"
)

type algorithm struct {
	build func() model.Regressor
	// blank is the zero value decoded into by LoadModel. gob leaves fields
	// that were zero when saved untouched, so decoding into build() would
	// resurrect its defaults.
	blank func() model.Regressor
	space optimize.Space
}

var algorithms = map[string]algorithm{
	AlgorithmRandomForest: {
		build: func() model.Regressor { return ensemble.NewRandomForestRegressor() },
		blank: func() model.Regressor { return &ensemble.RandomForestRegressor{} },
		space: optimize.Space{
			optimize.IntLog("n_estimators", 10, 300),
			optimize.Int("max_depth", 2, 32),
			optimize.Int("min_samples_leaf", 1, 8),
			optimize.Float("max_features", 0.05, 1.0),
		},
	},
	AlgorithmGradientBoosting: {
		build: func() model.Regressor { return ensemble.NewGradientBoostingRegressor() },
		blank: func() model.Regressor { return &ensemble.GradientBoostingRegressor{} },
		space: optimize.Space{
			optimize.IntLog("n_estimators", 20, 400),
			optimize.FloatLog("learning_rate", 0.01, 0.3),
			optimize.Int("max_depth", 2, 8),
			optimize.Float("subsample", 0.5, 1.0),
		},
	},
	AlgorithmDecisionTree: {
		build: func() model.Regressor { return tree.NewDecisionTreeRegressor() },
		blank: func() model.Regressor { return &tree.DecisionTreeRegressor{} },
		space: optimize.Space{
			optimize.Int("max_depth", 2, 32),
			optimize.Int("min_samples_leaf", 1, 16),
		},
	},
	AlgorithmRidge: {
		build: func() model.Regressor { return linear_model.NewRidge() },
		blank: func() model.Regressor { return &linear_model.Ridge{} },
		space: optimize.Space{
			optimize.FloatLog("alpha", 1e-3, 1e3),
			optimize.Categorical("standardize", true, false),
		},
	},
}

// Algorithms lists the supported algorithm names.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSearchSpace returns the built-in search space of an algorithm.
func DefaultSearchSpace(name string) (optimize.Space, error) {
	alg, ok := algorithms[name]
	if !ok {
		return nil, unknownAlgorithm(name)
	}
	return append(optimize.Space(nil), alg.space...), nil
}

// NewEstimator builds an unfitted estimator with base and trial parameters
// applied in that order.
func NewEstimator(name string, params ...map[string]interface{}) (model.Regressor, error) {
	alg, ok := algorithms[name]
	if !ok {
		return nil, unknownAlgorithm(name)
	}
	est := alg.build()
	for _, p := range params {
		if len(p) == 0 {
			continue
		}
		if err := est.SetParams(p); err != nil {
			return nil, errors.Wrapf(err, "configure %s", name)
		}
	}
	return est, nil
}

func unknownAlgorithm(name string) error {
	return errors.NewConfigError("model.algorithm", "unsupported algorithm", name)
}
