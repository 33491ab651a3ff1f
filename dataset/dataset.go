package dataset

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/core/parallel"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// TaskRegression is the only supported task type.
const TaskRegression = "regression"

// DroppedRecord is an input record excluded during preparation.
type DroppedRecord struct {
	Record Record
	Reason string
}

// Dataset is a labelled collection of records for one target property.
// Prepare fills in the standardized structures, split, features and
// scaffolds; after that the dataset is read-only.
type Dataset struct {
	Name     string
	Property string
	Task     string

	Records      []Record
	Standardized []string
	Scaffolds    []string
	Splits       []Split
	X            *mat.Dense // nil until prepared or when empty
	FeatureNames []string

	Fingerprint  chem.MorganFingerprint
	Standardizer chem.Standardizer
	Splitter     RandomSplit
	Dropped      []DroppedRecord
	Prepared     bool
}

// New wraps a table into a dataset. Only regression on the table's property
// is supported.
func New(name string, t *Table, property, task string) (*Dataset, error) {
	if name == "" {
		return nil, errors.NewConfigError("dataset.name", "must not be empty", name)
	}
	if property == "" || property != t.Property {
		return nil, errors.NewConfigError("target.property", "must match the loaded table column "+t.Property, property)
	}
	if task != TaskRegression {
		return nil, errors.NewConfigError("target.task", "only regression is supported", task)
	}
	return &Dataset{
		Name:     name,
		Property: property,
		Task:     task,
		Records:  append([]Record(nil), t.Records...),
	}, nil
}

// PrepareOptions configures Prepare.
type PrepareOptions struct {
	Standardizer chem.Standardizer
	Split        RandomSplit
	Fingerprint  chem.MorganFingerprint
	// Workers bounds parallel structure processing; <= 0 uses all cores.
	Workers int
}

// DefaultPrepareOptions mirrors the reference workshop configuration:
// 20% holdout and Morgan radius 3 with 2048 bits.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		Split:       RandomSplit{TestFraction: 0.2, Seed: 42},
		Fingerprint: chem.NewMorganFingerprint(3, 2048),
	}
}

type prepared struct {
	smiles   string
	scaffold string
	features []float64
	err      error
}

// Prepare standardizes every structure, drops (and logs) the ones that cannot
// be parsed, splits the remainder and computes fingerprints and scaffolds.
// The result only depends on the input records and options.
func (d *Dataset) Prepare(ctx context.Context, opts PrepareOptions) error {
	if d.Prepared {
		return errors.NewStateError("dataset "+d.Name, "prepared", "prepare")
	}
	if err := opts.Split.Validate(); err != nil {
		return err
	}
	if err := opts.Fingerprint.Validate(); err != nil {
		return errors.NewConfigError("fingerprint", err.Error(), opts.Fingerprint)
	}
	logger := log.GetLogger().With(
		log.ComponentKey, "dataset",
		log.DatasetKey, d.Name,
		log.OperationKey, log.OperationPrepare,
	)
	start := time.Now()

	results := make([]prepared, len(d.Records))
	parallel.ParallelizeN(len(d.Records), opts.Workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if ctx.Err() != nil {
				return
			}
			smi, m, err := opts.Standardizer.StandardizeSMILES(d.Records[i].SMILES)
			if err != nil {
				results[i].err = err
				continue
			}
			results[i] = prepared{
				smiles:   smi,
				scaffold: chem.MurckoScaffoldSMILES(m),
				features: opts.Fingerprint.ComputeFloat(m),
			}
		}
	})
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "prepare cancelled")
	}

	var (
		kept     []Record
		smiles   []string
		scaffold []string
		rows     [][]float64
		dropped  []DroppedRecord
	)
	for i, res := range results {
		rec := d.Records[i]
		if res.err != nil {
			dropped = append(dropped, DroppedRecord{Record: rec, Reason: res.err.Error()})
			errors.Warn(errors.NewInvalidStructureWarning(rec.ID, rec.SMILES, res.err.Error()))
			logger.Warn("Dropping unparsable structure",
				"id", rec.ID,
				log.SMILESKey, rec.SMILES,
				log.ErrorCodeKey, log.ErrorInvalidStructure,
			)
			continue
		}
		kept = append(kept, rec)
		smiles = append(smiles, res.smiles)
		scaffold = append(scaffold, res.scaffold)
		rows = append(rows, res.features)
	}

	d.Records = kept
	d.Standardized = smiles
	d.Scaffolds = scaffold
	d.Dropped = dropped
	d.Fingerprint = opts.Fingerprint
	d.Standardizer = opts.Standardizer
	d.FeatureNames = opts.Fingerprint.Names()
	d.Splitter = opts.Split
	d.Splits = opts.Split.Assign(len(kept))
	d.X = denseFromRows(rows, opts.Fingerprint.NBits)
	d.Prepared = true

	if len(kept) == 0 {
		logger.Warn("Prepared dataset is empty", log.DroppedKey, len(dropped))
	}
	logger.Info("Dataset prepared",
		log.SamplesKey, len(kept),
		log.FeaturesKey, opts.Fingerprint.NBits,
		log.DroppedKey, len(dropped),
		"test_samples", len(d.TestIndices()),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func denseFromRows(rows [][]float64, cols int) *mat.Dense {
	if len(rows) == 0 || cols == 0 {
		return nil
	}
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data)
}

// Len returns the number of prepared records.
func (d *Dataset) Len() int { return len(d.Records) }

// Values returns all target values.
func (d *Dataset) Values() []float64 {
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Value
	}
	return out
}

// TrainIndices returns the row indices of the training partition.
func (d *Dataset) TrainIndices() []int { return d.indices(SplitTrain) }

// TestIndices returns the row indices of the held-out partition.
func (d *Dataset) TestIndices() []int { return d.indices(SplitTest) }

func (d *Dataset) indices(s Split) []int {
	var out []int
	for i, sp := range d.Splits {
		if sp == s {
			out = append(out, i)
		}
	}
	return out
}

// Rows returns the feature rows and target values at the given indices.
func (d *Dataset) Rows(idx []int) (*mat.Dense, []float64, error) {
	if !d.Prepared {
		return nil, nil, errors.NewStateError("dataset "+d.Name, "unprepared", "read features")
	}
	if len(idx) == 0 || d.X == nil {
		return nil, nil, errors.NewDataError("select rows", "", 0, errors.ErrEmptyData)
	}
	_, cols := d.X.Dims()
	X := mat.NewDense(len(idx), cols, nil)
	y := make([]float64, len(idx))
	for k, i := range idx {
		X.SetRow(k, d.X.RawRowView(i))
		y[k] = d.Records[i].Value
	}
	return X, y, nil
}

// TrainXY returns the training features and targets.
func (d *Dataset) TrainXY() (*mat.Dense, []float64, error) { return d.Rows(d.TrainIndices()) }

// TestXY returns the held-out features and targets.
func (d *Dataset) TestXY() (*mat.Dense, []float64, error) { return d.Rows(d.TestIndices()) }

// AllXY returns the features and targets of every record, train and test pooled.
func (d *Dataset) AllXY() (*mat.Dense, []float64, error) {
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	return d.Rows(idx)
}
