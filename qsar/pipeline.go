package qsar

import (
	"context"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/config"
	"github.com/YuminosukeSato/qsarkit/dataset"
	"github.com/YuminosukeSato/qsarkit/explore"
	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// Pipeline runs the workflow stages described by a Config. Each stage can be
// called on its own; Run chains all of them.
type Pipeline struct {
	cfg    *config.Config
	logger log.Logger
}

// NewPipeline validates cfg and returns a Pipeline.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:    cfg,
		logger: log.GetLogger().With(log.ComponentKey, "pipeline", log.DatasetKey, cfg.Data.Name),
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// Filter loads the input table and keeps the configured accession and
// quality tiers. An empty result is not an error here.
func (p *Pipeline) Filter(context.Context) (*dataset.Table, error) {
	t, err := dataset.LoadTable(p.cfg.Data.Path, p.cfg.Target.Property)
	if err != nil {
		return nil, err
	}
	return dataset.Filter(t, p.cfg.Data.Accession, p.cfg.Data.Qualities), nil
}

// PrepareOptions translates the configuration for dataset.Prepare.
func (p *Pipeline) PrepareOptions() dataset.PrepareOptions {
	return dataset.PrepareOptions{
		Standardizer: chem.Standardizer{
			KeepAllFragments: p.cfg.Standardize.KeepAllFragments,
			KeepCharges:      p.cfg.Standardize.KeepCharges,
		},
		Split:       dataset.RandomSplit{TestFraction: p.cfg.Split.Holdout, Seed: p.cfg.Split.Seed},
		Fingerprint: chem.NewMorganFingerprint(p.cfg.Fingerprint.Radius, p.cfg.Fingerprint.NBits),
	}
}

// Prepare builds, prepares and saves the dataset. An empty table fails here
// with a DataError since nothing downstream can run on it.
func (p *Pipeline) Prepare(ctx context.Context, t *dataset.Table) (*dataset.Dataset, error) {
	if t.Len() == 0 {
		return nil, errors.NewDataError("prepare", p.cfg.Target.Property, 0,
			errors.Wrapf(errors.ErrEmptyData, "no records for accession %s", p.cfg.Data.Accession))
	}
	ds, err := dataset.New(p.cfg.Data.Name, t, p.cfg.Target.Property, p.cfg.Target.Task)
	if err != nil {
		return nil, err
	}
	if err := ds.Prepare(ctx, p.PrepareOptions()); err != nil {
		return nil, err
	}
	if err := ds.Save(p.cfg.Storage.Dir); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadDataset reloads the dataset saved by Prepare.
func (p *Pipeline) LoadDataset() (*dataset.Dataset, error) {
	return dataset.Load(p.cfg.Storage.Dir, p.cfg.Data.Name)
}

// Exploration holds the read-only summaries of a prepared dataset.
type Exploration struct {
	Description     explore.Description
	Histogram       []explore.Bin
	Top             []explore.Ranked
	Scaffolds       []explore.ScaffoldGroup
	ScaffoldMembers []dataset.Record
	HistogramPlot   string
}

// Explore summarizes ds. Nothing it computes feeds back into training.
func (p *Pipeline) Explore(ds *dataset.Dataset) (*Exploration, error) {
	values := ds.Values()
	desc, err := explore.Describe(values)
	if err != nil {
		return nil, err
	}
	hist, err := explore.Histogram(values, p.cfg.Explore.Bins)
	if err != nil {
		return nil, err
	}
	ex := &Exploration{
		Description: desc,
		Histogram:   hist,
		Top:         explore.TopK(ds, p.cfg.Explore.TopK),
		Scaffolds:   explore.ScaffoldSummary(ds, p.cfg.Explore.MinCount),
	}
	if idx := p.cfg.Explore.ScaffoldIndex; idx < len(ex.Scaffolds) {
		if ex.ScaffoldMembers, err = explore.ScaffoldMembers(ds, ex.Scaffolds, idx); err != nil {
			return nil, err
		}
	}
	if p.cfg.Explore.Plots {
		ex.HistogramPlot = filepath.Join(p.cfg.Storage.Dir, ds.Name, ds.Name+"_hist.png")
		if err := explore.PlotHistogram(ex.HistogramPlot, values, p.cfg.Explore.Bins, ds.Property); err != nil {
			return nil, err
		}
	}
	p.logger.Info("Explored dataset",
		log.SamplesKey, desc.Count,
		"mean", desc.Mean,
		"scaffolds", len(ex.Scaffolds),
	)
	return ex, nil
}

// Train optimizes, evaluates and fits one configured model.
func (p *Pipeline) Train(ctx context.Context, ds *dataset.Dataset, mc config.ModelConfig) (*Model, error) {
	opts := []Option{
		WithCVFolds(mc.CVFolds),
		WithSeed(mc.Seed),
		WithParityPlot(mc.Plot),
	}
	if mc.NJobs != 0 && mc.Algorithm == AlgorithmRandomForest {
		opts = append(opts, WithBaseParams(map[string]interface{}{"n_jobs": mc.NJobs}))
	}
	if mc.Sampler == "random" {
		opts = append(opts, WithSampler(optimize.NewRandomSampler(mc.Seed)))
	}
	if p.cfg.Storage.TrialsDB != "" {
		st, err := optimize.OpenSQLiteStorage(p.cfg.Storage.TrialsDB)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		opts = append(opts, WithTrialStorage(st))
	}

	m, err := NewModel(mc.Name, mc.Algorithm, p.cfg.Storage.Dir, ds, opts...)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if mc.Trials == 0 {
		err = m.UseParams(optimize.Params{})
	} else {
		space, serr := mc.Space()
		if serr != nil {
			return nil, serr
		}
		if space == nil {
			if space, serr = DefaultSearchSpace(mc.Algorithm); serr != nil {
				return nil, serr
			}
		}
		_, err = m.Optimize(ctx, space, mc.Trials)
	}
	if err != nil {
		return nil, err
	}
	if _, err := m.Evaluate(ctx); err != nil {
		return nil, err
	}
	if err := m.FitAttached(ctx); err != nil {
		return nil, err
	}
	p.logger.Info("Model trained",
		log.ModelNameKey, mc.Algorithm,
		"model", mc.Name,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

// Report collects the output of Run.
type Report struct {
	Filtered    int
	Dataset     *dataset.Dataset
	Exploration *Exploration
	Models      []*Model
	// Predictions[k] are the predictions of Models[k] for the configured SMILES.
	Predictions [][]Prediction
}

// Run executes every stage in order and stops at the first error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	t, err := p.Filter(ctx)
	if err != nil {
		return nil, err
	}
	rep := &Report{Filtered: t.Len()}
	if rep.Dataset, err = p.Prepare(ctx, t); err != nil {
		return rep, err
	}
	if rep.Exploration, err = p.Explore(rep.Dataset); err != nil {
		return rep, err
	}
	for _, mc := range p.cfg.Models {
		m, err := p.Train(ctx, rep.Dataset, mc)
		if err != nil {
			return rep, errors.Wrapf(err, "model %s", mc.Name)
		}
		preds, err := m.PredictSMILES(ctx, p.cfg.Predict.SMILES)
		if err != nil {
			return rep, err
		}
		rep.Models = append(rep.Models, m)
		rep.Predictions = append(rep.Predictions, preds)
	}
	return rep, nil
}
