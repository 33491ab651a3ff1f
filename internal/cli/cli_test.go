package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		want     *Options
		exitCode int
	}{
		{"no args prints usage", nil, nil, 0},
		{"help", []string{"-h"}, nil, 0},
		{"run with config", []string{"run", "-c", "w.hcl"}, &Options{Command: "run", ConfigPath: "w.hcl"}, 0},
		{"predict collects smiles", []string{"predict", "-model", "rf", "CCO", "c1ccccc1"},
			&Options{Command: "predict", Model: "rf", SMILES: []string{"CCO", "c1ccccc1"}}, 0},
		{"serve addr", []string{"serve", "-addr", ":9000", "-log-format", "json"},
			&Options{Command: "serve", Addr: ":9000", LogFormat: "json"}, 0},
		{"unknown command", []string{"deploy"}, nil, 2},
		{"unknown flag", []string{"run", "-model", "rf"}, nil, 2},
		{"stray argument", []string{"explore", "extra"}, nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := Parse(tt.args, &out)
			if tt.exitCode != 0 {
				ee, ok := err.(*ExitError)
				if !ok || ee.Code != tt.exitCode {
					t.Fatalf("err = %v, want ExitError code %d", err, tt.exitCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				if !strings.Contains(out.String(), "Usage") && !strings.Contains(out.String(), "-config") {
					t.Errorf("usage not printed: %q", out.String())
				}
				return
			}
			if got.Command != tt.want.Command || got.ConfigPath != tt.want.ConfigPath ||
				got.Model != tt.want.Model || got.Addr != tt.want.Addr || got.LogFormat != tt.want.LogFormat ||
				strings.Join(got.SMILES, " ") != strings.Join(tt.want.SMILES, " ") {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
