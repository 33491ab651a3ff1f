package qsar

import (
	"context"
	"testing"

	"github.com/YuminosukeSato/qsarkit/config"
	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// small keeps each estimator fast enough for the lifecycle test.
var small = map[string]optimize.Params{
	AlgorithmRandomForest:     {"n_estimators": 8, "max_depth": 6},
	AlgorithmGradientBoosting: {"n_estimators": 30, "max_depth": 2},
	AlgorithmDecisionTree:     {"max_depth": 5},
	AlgorithmRidge:            {"alpha": 1.0},
}

func TestEveryAlgorithmRoundTrips(t *testing.T) {
	ds := preparedDataset(t)
	ctx := context.Background()
	for _, name := range Algorithms() {
		t.Run(name, func(t *testing.T) {
			params, ok := small[name]
			if !ok {
				t.Fatalf("no test parameters for %s", name)
			}
			dir := t.TempDir()
			m, err := NewModel("alg", name, dir, ds, WithCVFolds(3))
			if err != nil {
				t.Fatal(err)
			}
			if err := m.UseParams(params); err != nil {
				t.Fatalf("UseParams() error: %v", err)
			}
			eval, err := m.Evaluate(ctx)
			if err != nil {
				t.Fatalf("Evaluate() error: %v", err)
			}
			if eval.CV.R2 < 0.3 {
				t.Errorf("cross-validated R2 = %.3f, want a model that learned something", eval.CV.R2)
			}
			if err := m.FitAttached(ctx); err != nil {
				t.Fatalf("FitAttached() error: %v", err)
			}
			want, err := m.Predict(ctx, config.WorkshopSMILES)
			if err != nil {
				t.Fatal(err)
			}
			loaded, err := LoadModel(dir, "alg")
			if err != nil {
				t.Fatalf("LoadModel() error: %v", err)
			}
			got, err := loaded.Predict(ctx, config.WorkshopSMILES)
			if err != nil {
				t.Fatal(err)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("prediction %d after reload = %v, want %v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestDefaultSearchSpaces(t *testing.T) {
	for _, name := range Algorithms() {
		space, err := DefaultSearchSpace(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := space.Validate(); err != nil {
			t.Errorf("%s: invalid default space: %v", name, err)
		}
		// Every dimension must be a parameter the estimator accepts.
		p := optimize.Params{}
		for _, d := range space {
			switch d.Kind {
			case optimize.KindCategorical:
				p[d.Name] = d.Choices[0]
			case optimize.KindInt:
				p[d.Name] = int(d.Low)
			default:
				p[d.Name] = d.Low
			}
		}
		if _, err := NewEstimator(name, p); err != nil {
			t.Errorf("%s rejects its own search space: %v", name, err)
		}
	}
	var ce *errors.ConfigError
	if _, err := DefaultSearchSpace("SVR"); !errors.As(err, &ce) {
		t.Errorf("unknown algorithm = %v, want ConfigError", err)
	}
}
