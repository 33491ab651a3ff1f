package config

import (
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// The hcl* types mirror Config with pointer attributes so that anything left
// out of the file keeps its default.

type hclFile struct {
	Data        *hclData        `hcl:"data,block"`
	Target      *hclTarget      `hcl:"target,block"`
	Split       *hclSplit       `hcl:"split,block"`
	Fingerprint *hclFingerprint `hcl:"fingerprint,block"`
	Standardize *hclStandardize `hcl:"standardize,block"`
	Explore     *hclExplore     `hcl:"explore,block"`
	Models      []*hclModel     `hcl:"model,block"`
	Predict     *hclPredict     `hcl:"predict,block"`
	Storage     *hclStorage     `hcl:"storage,block"`
	Server      *hclServer      `hcl:"server,block"`
	Log         *hclLog         `hcl:"log,block"`
}

type hclData struct {
	Path      *string  `hcl:"path,optional"`
	Name      *string  `hcl:"name,optional"`
	Accession *string  `hcl:"accession,optional"`
	Qualities []string `hcl:"qualities,optional"`
}

type hclTarget struct {
	Property *string `hcl:"property,optional"`
	Task     *string `hcl:"task,optional"`
}

type hclSplit struct {
	Holdout *float64 `hcl:"holdout,optional"`
	Seed    *int64   `hcl:"seed,optional"`
}

type hclFingerprint struct {
	Type   *string `hcl:"type,optional"`
	Radius *int    `hcl:"radius,optional"`
	NBits  *int    `hcl:"nbits,optional"`
}

type hclStandardize struct {
	KeepAllFragments *bool `hcl:"keep_all_fragments,optional"`
	KeepCharges      *bool `hcl:"keep_charges,optional"`
}

type hclExplore struct {
	TopK          *int  `hcl:"top_k,optional"`
	MinCount      *int  `hcl:"min_count,optional"`
	Bins          *int  `hcl:"bins,optional"`
	ScaffoldIndex *int  `hcl:"scaffold_index,optional"`
	Plots         *bool `hcl:"plots,optional"`
}

type hclModel struct {
	Name      string      `hcl:"name,label"`
	Algorithm *string     `hcl:"algorithm,optional"`
	Trials    *int        `hcl:"trials,optional"`
	CVFolds   *int        `hcl:"cv_folds,optional"`
	Seed      *int64      `hcl:"seed,optional"`
	NJobs     *int        `hcl:"n_jobs,optional"`
	Sampler   *string     `hcl:"sampler,optional"`
	Plot      *bool       `hcl:"plot,optional"`
	Params    []*hclParam `hcl:"param,block"`
}

type hclParam struct {
	Name    string         `hcl:"name,label"`
	Type    string         `hcl:"type"`
	Low     *float64       `hcl:"low,optional"`
	High    *float64       `hcl:"high,optional"`
	Log     *bool          `hcl:"log,optional"`
	Choices hcl.Expression `hcl:"choices,optional"`
}

type hclPredict struct {
	SMILES []string `hcl:"smiles,optional"`
}

type hclStorage struct {
	Dir      *string `hcl:"dir,optional"`
	TrialsDB *string `hcl:"trials_db,optional"`
}

type hclServer struct {
	Addr  *string  `hcl:"addr,optional"`
	Rate  *float64 `hcl:"rate,optional"`
	Burst *int     `hcl:"burst,optional"`
}

type hclLog struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setSeed(dst *uint64, src *int64, field string) error {
	if src == nil {
		return nil
	}
	if *src < 0 {
		return errors.NewConfigError(field, "must be >= 0", *src)
	}
	*dst = uint64(*src)
	return nil
}

func (f *hclFile) apply(c *Config, ctx *hcl.EvalContext) error {
	if d := f.Data; d != nil {
		set(&c.Data.Path, d.Path)
		set(&c.Data.Name, d.Name)
		set(&c.Data.Accession, d.Accession)
		if d.Qualities != nil {
			c.Data.Qualities = d.Qualities
		}
	}
	if t := f.Target; t != nil {
		set(&c.Target.Property, t.Property)
		set(&c.Target.Task, t.Task)
	}
	if s := f.Split; s != nil {
		set(&c.Split.Holdout, s.Holdout)
		if err := setSeed(&c.Split.Seed, s.Seed, "split.seed"); err != nil {
			return err
		}
	}
	if fp := f.Fingerprint; fp != nil {
		set(&c.Fingerprint.Type, fp.Type)
		set(&c.Fingerprint.Radius, fp.Radius)
		set(&c.Fingerprint.NBits, fp.NBits)
	}
	if s := f.Standardize; s != nil {
		set(&c.Standardize.KeepAllFragments, s.KeepAllFragments)
		set(&c.Standardize.KeepCharges, s.KeepCharges)
	}
	if e := f.Explore; e != nil {
		set(&c.Explore.TopK, e.TopK)
		set(&c.Explore.MinCount, e.MinCount)
		set(&c.Explore.Bins, e.Bins)
		set(&c.Explore.ScaffoldIndex, e.ScaffoldIndex)
		set(&c.Explore.Plots, e.Plots)
	}
	if len(f.Models) > 0 {
		base := Default().Models[0]
		c.Models = c.Models[:0]
		for _, hm := range f.Models {
			m := base
			m.Name = hm.Name
			set(&m.Algorithm, hm.Algorithm)
			set(&m.Trials, hm.Trials)
			set(&m.CVFolds, hm.CVFolds)
			set(&m.NJobs, hm.NJobs)
			set(&m.Sampler, hm.Sampler)
			set(&m.Plot, hm.Plot)
			if err := setSeed(&m.Seed, hm.Seed, "model."+hm.Name+".seed"); err != nil {
				return err
			}
			for _, hp := range hm.Params {
				p, err := hp.param(ctx, "model."+hm.Name+".param."+hp.Name)
				if err != nil {
					return err
				}
				m.Params = append(m.Params, p)
			}
			c.Models = append(c.Models, m)
		}
	}
	if p := f.Predict; p != nil && p.SMILES != nil {
		c.Predict.SMILES = p.SMILES
	}
	if s := f.Storage; s != nil {
		set(&c.Storage.Dir, s.Dir)
		set(&c.Storage.TrialsDB, s.TrialsDB)
	}
	if s := f.Server; s != nil {
		set(&c.Server.Addr, s.Addr)
		set(&c.Server.Rate, s.Rate)
		set(&c.Server.Burst, s.Burst)
	}
	if l := f.Log; l != nil {
		set(&c.Log.Level, l.Level)
		set(&c.Log.Format, l.Format)
	}
	return nil
}

func (hp *hclParam) param(ctx *hcl.EvalContext, field string) (ParamConfig, error) {
	p := ParamConfig{Name: hp.Name, Type: hp.Type}
	set(&p.Low, hp.Low)
	set(&p.High, hp.High)
	set(&p.Log, hp.Log)
	if hp.Type != "categorical" {
		if hp.Low == nil || hp.High == nil {
			return p, errors.NewConfigError(field, "low and high are required", hp.Type)
		}
		return p, nil
	}
	if hp.Choices == nil {
		return p, errors.NewConfigError(field, "choices are required", nil)
	}
	v, diags := hp.Choices.Value(ctx)
	if diags.HasErrors() {
		return p, errors.NewConfigError(field, diags.Error(), nil)
	}
	if v.IsNull() || !v.IsKnown() || !v.CanIterateElements() {
		return p, errors.NewConfigError(field, "choices must be a list", nil)
	}
	for it := v.ElementIterator(); it.Next(); {
		_, el := it.Element()
		c, err := choiceValue(el)
		if err != nil {
			return p, errors.NewConfigError(field, err.Error(), nil)
		}
		p.Choices = append(p.Choices, c)
	}
	return p, nil
}

// choiceValue converts a cty value to string, bool, int (integral numbers)
// or float64.
func choiceValue(v cty.Value) (interface{}, error) {
	if v.IsNull() {
		return nil, errors.New("null choice")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Bool:
		return v.True(), nil
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f), nil
		}
		return f, nil
	}
	return nil, errors.Newf("unsupported choice type %s", v.Type().FriendlyName())
}
