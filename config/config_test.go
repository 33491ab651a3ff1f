package config

import (
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

func TestDefault(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	if c.Data.Accession != "P29274" || c.Split.Holdout != 0.2 || c.Fingerprint.NBits != 2048 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if len(c.Predict.SMILES) != 3 {
		t.Errorf("default SMILES = %d, want 3", len(c.Predict.SMILES))
	}
}

func TestLoadWorkshopFile(t *testing.T) {
	t.Setenv("QSAR_DATA_DIR", "/srv/data")
	c, err := Load(filepath.Join("testdata", "workshop.hcl"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if c.Data.Path != "/srv/data/A2A_LIGANDS.tsv" {
		t.Errorf("data.path = %q, want env interpolation", c.Data.Path)
	}
	if c.Storage.TrialsDB != "qspr/trials.db" {
		t.Errorf("storage.trials_db = %q", c.Storage.TrialsDB)
	}
	m, ok := c.Model("A2AR_RandomForestRegressor")
	if !ok {
		t.Fatal("model block missing")
	}
	if m.Trials != 20 || m.CVFolds != 5 || m.Sampler != "tpe" {
		t.Errorf("model = %+v", m)
	}
	space, err := m.Space()
	if err != nil {
		t.Fatalf("Space() error: %v", err)
	}
	if len(space) != 4 {
		t.Fatalf("space has %d dimensions, want 4", len(space))
	}
	if d := space[0]; d.Kind != optimize.KindInt || !d.Log || d.Low != 10 || d.High != 300 {
		t.Errorf("n_estimators = %+v", d)
	}
	if d := space[3]; d.Kind != optimize.KindCategorical || len(d.Choices) != 2 || d.Choices[0] != true {
		t.Errorf("bootstrap = %+v", d)
	}
}

func TestParseKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte(`
split {
  seed = 7
}
explore {
  plots = false
}
`), "partial.hcl")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if c.Split.Seed != 7 || c.Split.Holdout != 0.2 {
		t.Errorf("split = %+v, want seed 7 with default holdout", c.Split)
	}
	if c.Explore.Plots || c.Explore.TopK != 5 {
		t.Errorf("explore = %+v", c.Explore)
	}
	if len(c.Models) != 1 || c.Models[0].Algorithm != "RandomForestRegressor" {
		t.Errorf("models = %+v, want the default model", c.Models)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"holdout out of range", `split { holdout = 1.5 }`, "split.holdout"},
		{"classification", `target { task = "classification" }`, "target.task"},
		{"negative radius", `fingerprint { radius = -1 }`, "fingerprint.radius"},
		{"zero bits", `fingerprint { nbits = 0 }`, "fingerprint.nbits"},
		{"inverted bounds", `
model "m" {
  algorithm = "RandomForestRegressor"
  param "max_depth" {
    type = "int"
    low  = 10
    high = 2
  }
}`, "search_space.max_depth"},
		{"empty choices", `
model "m" {
  algorithm = "RandomForestRegressor"
  param "bootstrap" {
    type    = "categorical"
    choices = []
  }
}`, "search_space.bootstrap"},
		{"missing bounds", `
model "m" {
  algorithm = "RandomForestRegressor"
  param "max_depth" { type = "int" }
}`, "model.m.param.max_depth"},
		{"bad sampler", `
model "m" {
  algorithm = "RandomForestRegressor"
  sampler   = "grid"
}`, "model.m.sampler"},
		{"syntax", `split {`, "file"},
		{"unknown block", `nonsense {}`, "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl")
			var ce *errors.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Parse() = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q (%v)", ce.Field, tt.field, err)
			}
		})
	}
}
