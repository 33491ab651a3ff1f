// Package log defines standard attribute keys for the QSAR workflow.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log lines from filtering, preparation, search and
// prediction can be filtered by stage.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type.
	// Examples: "RandomForestRegressor", "GradientBoostingRegressor"
	ModelNameKey = "model.name"

	// EstimatorIDKey is the unique run identifier of a QSAR model instance.
	EstimatorIDKey = "estimator.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "dataset", "optimize", "qsar"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns).
	FeaturesKey = "data.features"

	// DroppedKey indicates how many rows were removed by a step.
	DroppedKey = "data.dropped"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// RMSEKey records the root mean squared error.
	RMSEKey = "metrics.rmse"

	// ScoreKey records the objective value of a hyperparameter trial.
	ScoreKey = "metrics.score"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"

	// FoldKey records the cross-validation fold index.
	FoldKey = "training.fold"
)

// Prediction Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// FailedKey indicates how many inputs could not be predicted.
	FailedKey = "preds.failed"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// QSAR workflow context
const (
	// AccessionKey is the target protein accession being modelled.
	AccessionKey = "qsar.accession"

	// DatasetKey is the name of a prepared dataset.
	DatasetKey = "qsar.dataset"

	// PropertyKey is the target property column.
	PropertyKey = "qsar.property"

	// SMILESKey carries a structure string.
	SMILESKey = "qsar.smiles"

	// TrialKey is the hyperparameter trial number.
	TrialKey = "qsar.trial"

	// StudyKey identifies a hyperparameter study.
	StudyKey = "qsar.study"

	// StateKey is the model lifecycle state.
	StateKey = "qsar.state"

	// PathKey is a filesystem path of an artifact.
	PathKey = "qsar.path"
)

// Standard attribute values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationScore    = "score"
	OperationFilter   = "filter"
	OperationPrepare  = "prepare"
	OperationOptimize = "optimize"
	OperationEvaluate = "evaluate"
	OperationSave     = "save"
	OperationLoad     = "load"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorInvalidStructure  = "INVALID_STRUCTURE"
)
