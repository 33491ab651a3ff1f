// Package config loads the workflow configuration from HCL.
//
// Every block and attribute is optional; anything missing keeps the value
// from Default. Expressions may reference environment variables as env.NAME.
//
//	data {
//	  path      = "${env.DATA_DIR}/A2A_LIGANDS.tsv"
//	  accession = "P29274"
//	  qualities = ["High"]
//	}
//
//	model "A2AR_RandomForestRegressor" {
//	  algorithm = "RandomForestRegressor"
//	  trials    = 20
//	  param "max_depth" {
//	    type = "int"
//	    low  = 2
//	    high = 32
//	  }
//	}
package config

import (
	"math"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// Config is the complete workflow configuration.
type Config struct {
	Data        DataConfig
	Target      TargetConfig
	Split       SplitConfig
	Fingerprint FingerprintConfig
	Standardize StandardizeConfig
	Explore     ExploreConfig
	Models      []ModelConfig
	Predict     PredictConfig
	Storage     StorageConfig
	Server      ServerConfig
	Log         LogConfig
}

// DataConfig selects the input table and the rows to keep.
type DataConfig struct {
	Path      string
	Name      string
	Accession string
	Qualities []string
}

// TargetConfig names the modelled property.
type TargetConfig struct {
	Property string
	Task     string
}

// SplitConfig configures the random train/test split.
type SplitConfig struct {
	Holdout float64
	Seed    uint64
}

// FingerprintConfig configures the descriptor.
type FingerprintConfig struct {
	Type   string
	Radius int
	NBits  int
}

// StandardizeConfig configures structure standardization.
type StandardizeConfig struct {
	KeepAllFragments bool
	KeepCharges      bool
}

// ExploreConfig configures the exploration stage.
type ExploreConfig struct {
	TopK          int
	MinCount      int
	Bins          int
	ScaffoldIndex int
	Plots         bool
}

// ModelConfig configures one model. Params empty means the algorithm's
// built-in search space.
type ModelConfig struct {
	Name      string
	Algorithm string
	Trials    int
	CVFolds   int
	Seed      uint64
	NJobs     int
	Sampler   string
	Plot      bool
	Params    []ParamConfig
}

// ParamConfig is one search dimension.
type ParamConfig struct {
	Name    string
	Type    string
	Low     float64
	High    float64
	Log     bool
	Choices []interface{}
}

// PredictConfig lists the structures to predict at the end of a run.
type PredictConfig struct {
	SMILES []string
}

// StorageConfig places artifacts.
type StorageConfig struct {
	Dir      string
	TrialsDB string
}

// ServerConfig configures the prediction service.
type ServerConfig struct {
	Addr  string
	Rate  float64
	Burst int
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Format string
}

// WorkshopSMILES are the three structures predicted in the reference run.
var WorkshopSMILES = []string{
	"OCCc1ccn2cnccc12",
	"C1CC1Oc1cc2ccncn2c1",
	"CNC(=O)c1nccc2cccn12",
}

// Default returns the reference configuration: the A2A adenosine receptor
// (P29274), high quality data, median pChEMBL value, 20% holdout and a
// random forest tuned over 20 trials.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path:      "data/A2A_LIGANDS.tsv",
			Name:      "A2A_LIGANDS",
			Accession: "P29274",
			Qualities: []string{"High"},
		},
		Target:      TargetConfig{Property: "pchembl_value_Median", Task: "regression"},
		Split:       SplitConfig{Holdout: 0.2, Seed: 42},
		Fingerprint: FingerprintConfig{Type: "morgan", Radius: 3, NBits: 2048},
		Explore:     ExploreConfig{TopK: 5, MinCount: 5, Bins: 20, Plots: true},
		Models: []ModelConfig{{
			Name:      "A2AR_RandomForestRegressor",
			Algorithm: "RandomForestRegressor",
			Trials:    20,
			CVFolds:   5,
			Seed:      42,
			Sampler:   "tpe",
			Plot:      true,
		}},
		Predict: PredictConfig{SMILES: append([]string(nil), WorkshopSMILES...)},
		Storage: StorageConfig{Dir: "qspr"},
		Server:  ServerConfig{Addr: ":8080", Rate: 20, Burst: 40},
		Log:     LogConfig{Level: "info", Format: "console"},
	}
}

// Validate reports the first invalid setting as a ConfigError.
func (c *Config) Validate() error {
	switch {
	case c.Data.Path == "":
		return errors.NewConfigError("data.path", "must not be empty", c.Data.Path)
	case c.Data.Name == "":
		return errors.NewConfigError("data.name", "must not be empty", c.Data.Name)
	case c.Target.Property == "":
		return errors.NewConfigError("target.property", "must not be empty", c.Target.Property)
	case c.Target.Task != "regression":
		return errors.NewConfigError("target.task", "only regression is supported", c.Target.Task)
	case !(c.Split.Holdout > 0 && c.Split.Holdout < 1):
		return errors.NewConfigError("split.holdout", "must be in (0, 1)", c.Split.Holdout)
	case c.Fingerprint.Type != "morgan":
		return errors.NewConfigError("fingerprint.type", "only morgan is supported", c.Fingerprint.Type)
	case c.Fingerprint.Radius < 0:
		return errors.NewConfigError("fingerprint.radius", "must be >= 0", c.Fingerprint.Radius)
	case c.Fingerprint.NBits <= 0:
		return errors.NewConfigError("fingerprint.nbits", "must be > 0", c.Fingerprint.NBits)
	case c.Explore.TopK < 0:
		return errors.NewConfigError("explore.top_k", "must be >= 0", c.Explore.TopK)
	case c.Explore.MinCount < 0:
		return errors.NewConfigError("explore.min_count", "must be >= 0", c.Explore.MinCount)
	case c.Explore.Bins < 1:
		return errors.NewConfigError("explore.bins", "must be >= 1", c.Explore.Bins)
	case len(c.Models) == 0:
		return errors.NewConfigError("model", "at least one model block is required", nil)
	case c.Server.Rate <= 0 || c.Server.Burst < 1:
		return errors.NewConfigError("server.rate", "rate must be > 0 and burst >= 1", c.Server.Rate)
	}
	seen := map[string]bool{}
	for _, m := range c.Models {
		if seen[m.Name] {
			return errors.NewConfigError("model."+m.Name, "duplicate model name", m.Name)
		}
		seen[m.Name] = true
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one model block.
func (m ModelConfig) Validate() error {
	field := "model." + m.Name
	switch {
	case m.Name == "":
		return errors.NewConfigError("model", "missing name label", m.Name)
	case m.Algorithm == "":
		return errors.NewConfigError(field+".algorithm", "must not be empty", m.Algorithm)
	case m.Trials < 0:
		return errors.NewConfigError(field+".trials", "must be >= 0", m.Trials)
	case m.CVFolds < 2:
		return errors.NewConfigError(field+".cv_folds", "must be >= 2", m.CVFolds)
	case m.Sampler != "tpe" && m.Sampler != "random":
		return errors.NewConfigError(field+".sampler", "must be tpe or random", m.Sampler)
	}
	if len(m.Params) == 0 {
		return nil
	}
	_, err := m.Space()
	return err
}

// Space converts the param blocks to a search space. It returns nil when
// no param block is given.
func (m ModelConfig) Space() (optimize.Space, error) {
	if len(m.Params) == 0 {
		return nil, nil
	}
	space := make(optimize.Space, 0, len(m.Params))
	for _, p := range m.Params {
		var d optimize.Dimension
		switch p.Type {
		case "int":
			if p.Low != math.Trunc(p.Low) || p.High != math.Trunc(p.High) {
				return nil, errors.NewConfigError("model."+m.Name+".param."+p.Name, "integer bounds required", [2]float64{p.Low, p.High})
			}
			d = optimize.Int(p.Name, int(p.Low), int(p.High))
		case "float":
			d = optimize.Float(p.Name, p.Low, p.High)
		case "categorical":
			d = optimize.Categorical(p.Name, p.Choices...)
		default:
			return nil, errors.NewConfigError("model."+m.Name+".param."+p.Name, "type must be int, float or categorical", p.Type)
		}
		d.Log = p.Log
		space = append(space, d)
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	return space, nil
}

// Model returns the model block with the given name.
func (c *Config) Model(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// Load reads and validates the HCL file at path on top of Default.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("file", err.Error(), path)
	}
	return Parse(src, path)
}

// Parse decodes HCL source on top of Default and validates the result.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.NewConfigError("file", diags.Error(), filename)
	}
	evalCtx := EvalContext()

	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &raw); diags.HasErrors() {
		return nil, errors.NewConfigError("file", diags.Error(), filename)
	}
	cfg := Default()
	if err := raw.apply(cfg, evalCtx); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EvalContext exposes the process environment as env.NAME.
func EvalContext() *hcl.EvalContext {
	vars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && hclsyntaxIdent(k) {
			vars[k] = cty.StringVal(v)
		}
	}
	env := cty.MapValEmpty(cty.String)
	if len(vars) > 0 {
		env = cty.MapVal(vars)
	}
	return &hcl.EvalContext{Variables: map[string]cty.Value{"env": env}}
}

// hclsyntaxIdent reports whether name can follow "env." in an expression.
func hclsyntaxIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}
