package model_selection

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/metrics"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// EstimatorFactory returns a fresh, unfitted estimator for every fold.
type EstimatorFactory func() (model.Regressor, error)

// CVResult holds out-of-fold predictions and per-fold scores.
type CVResult struct {
	// Predictions[i] is the prediction for row i from the fold that held it out.
	Predictions []float64
	// Fold[i] is the index of the fold in which row i was a test sample.
	Fold []int
	// Scores[k] is the R² of fold k.
	Scores []float64
}

// CrossValPredict fits one estimator per fold and predicts the held-out rows.
// Folds run sequentially; ctx is checked between folds.
func CrossValPredict(ctx context.Context, factory EstimatorFactory, X, y mat.Matrix, cv Splitter) (*CVResult, error) {
	rows, _ := X.Dims()
	yRows, _ := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError("CrossValPredict", rows, yRows, 0)
	}
	folds, err := cv.Split(rows)
	if err != nil {
		return nil, err
	}

	res := &CVResult{
		Predictions: make([]float64, rows),
		Fold:        make([]int, rows),
		Scores:      make([]float64, len(folds)),
	}
	logger := log.GetLogger().With(log.OperationKey, log.OperationEvaluate, log.PhaseKey, log.PhaseValidation)
	for k, fold := range folds {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "cross-validation stopped before fold %d", k)
		}
		start := time.Now()
		est, err := factory()
		if err != nil {
			return nil, err
		}
		if err := est.Fit(Rows(X, fold.TrainIndices), Rows(y, fold.TrainIndices)); err != nil {
			return nil, errors.Wrapf(err, "fold %d", k)
		}
		yTest := Rows(y, fold.TestIndices)
		pred, err := est.Predict(Rows(X, fold.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", k)
		}
		for j, i := range fold.TestIndices {
			res.Predictions[i] = pred.At(j, 0)
			res.Fold[i] = k
		}
		// 分散ゼロのfoldではR2ScoreがUndefinedMetricWarningを出して0か1を返す
		if res.Scores[k], err = metrics.R2ScoreMatrix(yTest, pred); err != nil {
			return nil, errors.Wrapf(err, "fold %d", k)
		}
		logger.Debug("Fold finished",
			log.FoldKey, k,
			log.SamplesKey, len(fold.TrainIndices),
			log.R2ScoreKey, res.Scores[k],
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return res, nil
}

// CrossValScore returns the R² of every fold.
func CrossValScore(ctx context.Context, factory EstimatorFactory, X, y mat.Matrix, cv Splitter) ([]float64, error) {
	res, err := CrossValPredict(ctx, factory, X, y, cv)
	if err != nil {
		return nil, err
	}
	return res.Scores, nil
}
