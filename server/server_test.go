package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/dataset"
	"github.com/YuminosukeSato/qsarkit/optimize"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/qsar"
)

func fittedModel(t *testing.T) *qsar.Model {
	t.Helper()
	var b strings.Builder
	b.WriteString("accession\tQuality\tSMILES\tpchembl_value_Median\n")
	for n := 1; n <= 10; n++ {
		fmt.Fprintf(&b, "P29274\tHigh\t%sO\t%.1f\n", strings.Repeat("C", n), 4+0.2*float64(n))
		fmt.Fprintf(&b, "P29274\tHigh\tc1ccccc1%s\t%.1f\n", strings.Repeat("C", n), 6+0.2*float64(n))
	}
	table, err := dataset.ReadTable(strings.NewReader(b.String()), "pchembl_value_Median")
	if err != nil {
		t.Fatal(err)
	}
	ds, err := dataset.New("srv", table, "pchembl_value_Median", dataset.TaskRegression)
	if err != nil {
		t.Fatal(err)
	}
	opts := dataset.DefaultPrepareOptions()
	opts.Fingerprint = chem.NewMorganFingerprint(2, 128)
	if err := ds.Prepare(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	m, err := qsar.NewModel("srv_dt", qsar.AlgorithmDecisionTree, t.TempDir(), ds, qsar.WithCVFolds(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.UseParams(optimize.Params{"max_depth": 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Evaluate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.FitAttached(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewRequiresFittedModel(t *testing.T) {
	var se *errors.StateError
	if _, err := New(nil); !errors.As(err, &se) {
		t.Errorf("New(nil) = %v, want StateError", err)
	}
}

func TestRoutes(t *testing.T) {
	s, err := New(fittedModel(t))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"model", http.MethodGet, "/model", "", http.StatusOK},
		{"predict", http.MethodPost, "/predict", `{"smiles":["CCO"]}`, http.StatusOK},
		{"empty list", http.MethodPost, "/predict", `{"smiles":[]}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/predict", `{"smiles":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/predict", `{"smile":["C"]}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/predict", "", http.StatusMethodNotAllowed},
		{"not found", http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, ts.URL+tt.path, strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestPredictKeepsOrderAndReportsFailures(t *testing.T) {
	m := fittedModel(t)
	s, _ := New(m)
	input := []string{"CCCCO", "C1CC((", "c1ccccc1CCC"}
	body, _ := json.Marshal(PredictRequest{SMILES: input})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Model != "srv_dt" || resp.Property != "pchembl_value_Median" {
		t.Errorf("response header = %q %q", resp.Model, resp.Property)
	}
	if len(resp.Predictions) != len(input) {
		t.Fatalf("predictions = %d, want %d", len(resp.Predictions), len(input))
	}
	want, err := m.Predict(context.Background(), []string{"CCCCO", "c1ccccc1CCC"})
	if err != nil {
		t.Fatal(err)
	}
	for k, i := range []int{0, 2} {
		p := resp.Predictions[i]
		if p.SMILES != input[i] || p.Value == nil || *p.Value != want[k] || p.Error != "" {
			t.Errorf("item %d = %+v, want value %v", i, p, want[k])
		}
	}
	if p := resp.Predictions[1]; p.Value != nil || p.Error == "" {
		t.Errorf("invalid item = %+v, want null value and an error", p)
	}
}

func TestBatchLimit(t *testing.T) {
	s, err := New(fittedModel(t), WithMaxBatch(2))
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/predict",
		strings.NewReader(`{"smiles":["C","CC","CCC"]}`)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if _, err := New(fittedModel(t), WithMaxBatch(0)); err == nil {
		t.Error("expected error for zero batch limit")
	}
}

func TestRateLimit(t *testing.T) {
	s, err := New(fittedModel(t), WithRateLimit(0.001, 2))
	if err != nil {
		t.Fatal(err)
	}
	h := s.Handler()
	codes := make([]int, 4)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes[i] = rec.Code
	}
	want := []int{200, 200, 429, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s, _ := New(fittedModel(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ListenAndServe() = %v, want nil after cancel", err)
	}
}
