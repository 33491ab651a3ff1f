// Package qsar binds a regression algorithm to a prepared dataset and drives
// it through hyperparameter search, evaluation, the final fit and prediction
// on new structures.
package qsar

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/dataset"
	"github.com/YuminosukeSato/qsarkit/metrics"
	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
	ms "github.com/YuminosukeSato/qsarkit/sklearn/model_selection"
)

// Evaluation holds the cross-validation and held-out metrics.
type Evaluation struct {
	CV         metrics.Summary `json:"cv"`
	Test       metrics.Summary `json:"test"`
	FoldScores []float64       `json:"fold_r2"`
}

// Model is one algorithm bound to one dataset. Artifacts are written under
// <Dir>/<Name>/.
type Model struct {
	ID        string
	Name      string
	Algorithm string
	Dir       string

	Property     string
	Fingerprint  chem.MorganFingerprint
	Standardizer chem.Standardizer

	// BaseParams are applied to every estimator before the searched Params.
	BaseParams map[string]interface{}
	Params     optimize.Params
	Study      *optimize.Study
	Eval       *Evaluation

	data      *dataset.Dataset
	estimator model.Regressor
	state     State

	folds   int
	seed    uint64
	plots   bool
	sampler optimize.Sampler
	storage optimize.Storage
	logger  log.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithBaseParams sets fixed estimator parameters (for example n_jobs).
func WithBaseParams(p map[string]interface{}) Option {
	return func(m *Model) { m.BaseParams = p }
}

// WithCVFolds sets the number of cross-validation folds.
func WithCVFolds(k int) Option {
	return func(m *Model) { m.folds = k }
}

// WithSeed seeds fold assignment and the search sampler.
func WithSeed(seed uint64) Option {
	return func(m *Model) { m.seed = seed }
}

// WithSampler replaces the TPE sampler used by Optimize.
func WithSampler(s optimize.Sampler) Option {
	return func(m *Model) { m.sampler = s }
}

// WithTrialStorage persists the search history.
func WithTrialStorage(st optimize.Storage) Option {
	return func(m *Model) { m.storage = st }
}

// WithParityPlot makes Evaluate save an observed-versus-predicted plot.
func WithParityPlot(on bool) Option {
	return func(m *Model) { m.plots = on }
}

// NewModel binds algorithm to a prepared dataset.
func NewModel(name, algorithm, dir string, ds *dataset.Dataset, opts ...Option) (*Model, error) {
	if name == "" {
		return nil, errors.NewConfigError("model.name", "must not be empty", name)
	}
	if _, ok := algorithms[algorithm]; !ok {
		return nil, unknownAlgorithm(algorithm)
	}
	if ds == nil || !ds.Prepared {
		return nil, errors.NewStateError(name, Unconfigured.String(), "bind an unprepared dataset")
	}
	if ds.Task != dataset.TaskRegression {
		return nil, errors.NewConfigError("target.task", "only regression is supported", ds.Task)
	}
	m := &Model{
		ID:           uuid.NewString(),
		Name:         name,
		Algorithm:    algorithm,
		Dir:          dir,
		Property:     ds.Property,
		Fingerprint:  ds.Fingerprint,
		Standardizer: ds.Standardizer,
		data:         ds,
		folds:        5,
		seed:         42,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.folds < 2 {
		return nil, errors.NewConfigError("model.cv_folds", "must be >= 2", m.folds)
	}
	m.logger = log.GetLogger().With(
		log.ModelNameKey, m.Algorithm,
		log.EstimatorIDKey, m.ID,
		log.DatasetKey, ds.Name,
	)
	return m, nil
}

// State returns the lifecycle state.
func (m *Model) State() State { return m.state }

// Dataset returns the bound dataset (nil for a loaded model).
func (m *Model) Dataset() *dataset.Dataset { return m.data }

// ArtifactDir is <Dir>/<Name>.
func (m *Model) ArtifactDir() string { return filepath.Join(m.Dir, m.Name) }

func (m *Model) path(suffix string) string {
	return filepath.Join(m.ArtifactDir(), m.Name+suffix)
}

func (m *Model) newEstimator() (model.Regressor, error) {
	return NewEstimator(m.Algorithm, m.BaseParams, m.Params)
}

func (m *Model) cv() *ms.KFold { return ms.NewKFold(m.folds, true, m.seed) }

// UseParams fixes the hyperparameters without searching.
func (m *Model) UseParams(p optimize.Params) error {
	if err := m.require("set parameters", Unconfigured, Optimizing); err != nil {
		return err
	}
	if _, err := NewEstimator(m.Algorithm, m.BaseParams, p); err != nil {
		return err
	}
	m.Params = p
	m.state = Optimizing
	return m.saveParams()
}

// Optimize searches space for nTrials sequential trials, scoring each
// candidate by mean cross-validated R² on the training partition. The best
// parameters are saved to <name>_params.json.
func (m *Model) Optimize(ctx context.Context, space optimize.Space, nTrials int) (*optimize.Study, error) {
	if err := m.require("optimize", Unconfigured); err != nil {
		return nil, err
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	X, y, err := m.data.TrainXY()
	if err != nil {
		return nil, err
	}
	if rows, _ := X.Dims(); rows < m.folds {
		return nil, errors.NewDataError("optimize", "", rows,
			errors.Newf("%d training rows for %d folds", rows, m.folds))
	}
	Y := mat.NewDense(len(y), 1, y)

	objective := func(ctx context.Context, p optimize.Params) (float64, error) {
		factory := func() (model.Regressor, error) { return NewEstimator(m.Algorithm, m.BaseParams, p) }
		scores, err := ms.CrossValScore(ctx, factory, X, Y, m.cv())
		if err != nil {
			return 0, err
		}
		sum := 0.0
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores)), nil
	}

	opts := []optimize.Option{
		optimize.WithStudyName(m.Name),
		optimize.WithSeed(m.seed),
		optimize.WithLogger(m.logger),
	}
	if m.sampler != nil {
		opts = append(opts, optimize.WithSampler(m.sampler))
	}
	if m.storage != nil {
		opts = append(opts, optimize.WithStorage(m.storage))
	}
	study, err := optimize.Optimize(ctx, space, objective, nTrials, opts...)
	if err != nil {
		return study, err
	}
	m.Study = study
	m.Params = study.BestParams
	m.state = Optimizing
	return study, m.saveParams()
}

func (m *Model) saveParams() error {
	if err := os.MkdirAll(m.ArtifactDir(), 0o755); err != nil {
		return errors.NewArtifactError("params", m.Name, m.ArtifactDir(), err)
	}
	path := m.path("_params.json")
	if err := writeJSON(path, map[string]interface{}(m.Params)); err != nil {
		return errors.NewArtifactError("params", m.Name, path, err)
	}
	m.logger.Info("Saved parameters", log.PathKey, path, log.HyperParamsKey, map[string]interface{}(m.Params))
	return nil
}

// Evaluate cross-validates on the training partition and scores a model fit
// on the training partition against the held-out test partition. Per-row
// predictions are written to <name>.cv.tsv and <name>.ind.tsv.
func (m *Model) Evaluate(ctx context.Context) (*Evaluation, error) {
	if err := m.require("evaluate", Optimizing); err != nil {
		return nil, err
	}
	logger := m.logger.With(log.OperationKey, log.OperationEvaluate)
	start := time.Now()

	trainIdx, testIdx := m.data.TrainIndices(), m.data.TestIndices()
	X, y, err := m.data.Rows(trainIdx)
	if err != nil {
		return nil, err
	}
	cvRes, err := ms.CrossValPredict(ctx, m.newEstimator, X, mat.NewDense(len(y), 1, y), m.cv())
	if err != nil {
		return nil, err
	}
	eval := &Evaluation{FoldScores: cvRes.Scores}
	if eval.CV, err = metrics.Evaluate(y, cvRes.Predictions); err != nil {
		return nil, err
	}
	if err := m.writePredictions(m.path(".cv.tsv"), trainIdx, cvRes.Predictions, cvRes.Fold); err != nil {
		return nil, err
	}

	Xt, yt, err := m.data.Rows(testIdx)
	if err != nil {
		return nil, err
	}
	est, err := m.newEstimator()
	if err != nil {
		return nil, err
	}
	if err := est.Fit(X, mat.NewDense(len(y), 1, y)); err != nil {
		return nil, errors.NewModelError("evaluate", "fit", err)
	}
	pred, err := est.Predict(Xt)
	if err != nil {
		return nil, err
	}
	testPred := column(pred)
	if eval.Test, err = metrics.Evaluate(yt, testPred); err != nil {
		return nil, err
	}
	if err := m.writePredictions(m.path(".ind.tsv"), testIdx, testPred, nil); err != nil {
		return nil, err
	}
	if m.plots {
		if err := parityPlot(m.path(".ind.png"), yt, testPred, m.Name+" (test set)"); err != nil {
			return nil, err
		}
	}

	m.Eval = eval
	m.state = Evaluated
	logger.Info("Evaluation finished",
		log.PhaseKey, log.PhaseValidation,
		log.R2ScoreKey, eval.CV.R2,
		log.RMSEKey, eval.CV.RMSE,
	)
	logger.Info("Evaluation finished",
		log.PhaseKey, log.PhaseTesting,
		log.R2ScoreKey, eval.Test.R2,
		log.RMSEKey, eval.Test.RMSE,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return eval, nil
}

// FitAttached fits the final estimator on train and test pooled and saves
// <name>_meta.json and <name>.gob.
func (m *Model) FitAttached(ctx context.Context) error {
	if err := m.require("fit", Evaluated); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	X, y, err := m.data.AllXY()
	if err != nil {
		return err
	}
	est, err := m.newEstimator()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := est.Fit(X, mat.NewDense(len(y), 1, y)); err != nil {
		return errors.NewModelError("fit", "fit", err)
	}
	m.estimator = est
	m.state = Fitted
	m.logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(y),
		log.FeaturesKey, m.Fingerprint.NBits,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m.save()
}

// Prediction is the result for one input structure. Err is set and Value is
// NaN when the structure could not be parsed.
type Prediction struct {
	SMILES       string
	Standardized string
	Value        float64
	Err          error
}

// PredictSMILES predicts every structure in order. Unparsable inputs fail
// individually; the returned error is reserved for state and model problems.
func (m *Model) PredictSMILES(ctx context.Context, smiles []string) ([]Prediction, error) {
	if err := m.require("predict", Fitted); err != nil {
		return nil, err
	}
	return predictWith(ctx, m.estimator, m.Standardizer, m.Fingerprint, smiles, m.logger)
}

// Predict returns the values of PredictSMILES, NaN for failed inputs.
func (m *Model) Predict(ctx context.Context, smiles []string) ([]float64, error) {
	preds, err := m.PredictSMILES(ctx, smiles)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(preds))
	for i, p := range preds {
		out[i] = p.Value
	}
	return out, nil
}

func column(M mat.Matrix) []float64 {
	r, _ := M.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = M.At(i, 0)
	}
	return out
}
