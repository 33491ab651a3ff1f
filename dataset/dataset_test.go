package dataset

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/chem"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

const testProperty = "pchembl_value_Median"

var fixtureSMILES = []string{
	"OCCc1ccn2cnccc12",
	"C1CC1Oc1cc2ccncn2c1",
	"CNC(=O)c1nccc2cccn12",
	"Cc1ccccc1",
	"c1ccc(CCc2ccncc2)cc1",
	"CC(=O)Nc1ccc(O)cc1",
	"Nc1ncnc2[nH]cnc12",
	"COc1ccc2[nH]ccc2c1",
}

// synthTSV builds n records for accession "X" of which the first high are
// High quality; every seventh record has an unparsable structure when broken is set.
func synthTSV(n, high int, broken bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID\taccession\tQuality\tSMILES\t%s\n", testProperty)
	for i := 0; i < n; i++ {
		q := "Medium"
		if i < high {
			q = "High"
		}
		smi := fixtureSMILES[i%len(fixtureSMILES)]
		if broken && i%7 == 3 {
			smi = "C1CC(("
		}
		fmt.Fprintf(&sb, "c%03d\tX\t%s\t%s\t%.2f\n", i, q, smi, 5+float64(i%10)*0.3)
	}
	return sb.String()
}

func mustTable(t *testing.T, tsv string) *Table {
	t.Helper()
	tab, err := ReadTable(strings.NewReader(tsv), testProperty)
	if err != nil {
		t.Fatalf("ReadTable() error: %v", err)
	}
	return tab
}

func TestReadTable(t *testing.T) {
	tsv := "accession\tQuality\tSMILES\t" + testProperty + "\textra\n" +
		"P29274\tHigh\tCCO\t6.5\tx\n" +
		"P29274\tLow\tCCN\t\tx\n" +
		"P29274\tHigh\tCCC\tn/a\tx\n" +
		"P00533\tHigh\tc1ccccc1\t7.25\tx\n"
	tab := mustTable(t, tsv)
	if tab.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (rows without numeric value skipped)", tab.Len())
	}
	if tab.Records[0].ID != "row1" || tab.Records[1].ID != "row4" {
		t.Errorf("row IDs = %q, %q", tab.Records[0].ID, tab.Records[1].ID)
	}
	if tab.Records[1].Value != 7.25 {
		t.Errorf("Value = %v, want 7.25", tab.Records[1].Value)
	}
}

func TestReadTable_MissingColumn(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		missing string
	}{
		{"no accession", "Quality\tSMILES\t" + testProperty, ColumnAccession},
		{"no quality", "accession\tSMILES\t" + testProperty, ColumnQuality},
		{"no smiles", "accession\tQuality\t" + testProperty, ColumnSMILES},
		{"no property", "accession\tQuality\tSMILES", testProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.header+"\n"), testProperty)
			var de *errors.DataError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want DataError", err)
			}
			if de.Column != tt.missing {
				t.Errorf("Column = %q, want %q", de.Column, tt.missing)
			}
			if !errors.Is(err, errors.ErrMissingColumn) {
				t.Error("error does not wrap ErrMissingColumn")
			}
		})
	}
}

func TestFilter(t *testing.T) {
	tab := mustTable(t, synthTSV(100, 80, false))

	t.Run("accession and quality", func(t *testing.T) {
		got := Filter(tab, "X", []string{"High"})
		if got.Len() != 80 {
			t.Errorf("Filter() = %d records, want 80", got.Len())
		}
		if tab.Len() != 100 {
			t.Errorf("input table modified: %d records", tab.Len())
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		once := Filter(tab, "X", []string{"High"})
		twice := Filter(once, "X", []string{"High"})
		if once.Len() != twice.Len() {
			t.Fatalf("lengths differ: %d vs %d", once.Len(), twice.Len())
		}
		for i := range once.Records {
			if once.Records[i] != twice.Records[i] {
				t.Errorf("record %d differs", i)
			}
		}
	})

	t.Run("empty result", func(t *testing.T) {
		got := Filter(tab, "P29274", []string{"High"})
		if got.Len() != 0 {
			t.Errorf("Filter() = %d records, want 0", got.Len())
		}
	})

	t.Run("all qualities", func(t *testing.T) {
		if got := Filter(tab, "X", nil); got.Len() != 100 {
			t.Errorf("Filter() = %d records, want 100", got.Len())
		}
	})
}

func TestRandomSplit(t *testing.T) {
	tests := []struct {
		n        int
		fraction float64
		wantTest int
	}{
		{100, 0.2, 20},
		{81, 0.2, 16},
		{83, 0.2, 17},
		{5, 0.2, 1},
		{1, 0.2, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			s := RandomSplit{TestFraction: tt.fraction, Seed: 42}
			got := s.Assign(tt.n)
			if len(got) != tt.n {
				t.Fatalf("len = %d, want %d", len(got), tt.n)
			}
			test := 0
			for _, sp := range got {
				if sp == SplitTest {
					test++
				}
			}
			if test != tt.wantTest {
				t.Errorf("test size = %d, want %d", test, tt.wantTest)
			}
			again := s.Assign(tt.n)
			for i := range got {
				if got[i] != again[i] {
					t.Fatal("split is not reproducible for a fixed seed")
				}
			}
		})
	}

	if err := (RandomSplit{TestFraction: 1}).Validate(); err == nil {
		t.Error("expected ConfigError for fraction 1")
	}
}

func preparedDataset(t *testing.T, tsv string) *Dataset {
	t.Helper()
	tab := Filter(mustTable(t, tsv), "X", []string{"High"})
	ds, err := New("A2A_test", tab, testProperty, TaskRegression)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	opts := DefaultPrepareOptions()
	opts.Fingerprint = chem.NewMorganFingerprint(2, 256)
	if err := ds.Prepare(context.Background(), opts); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	return ds
}

func TestPrepare(t *testing.T) {
	ds := preparedDataset(t, synthTSV(100, 80, true))

	broken := 0
	for i := 0; i < 80; i++ {
		if i%7 == 3 {
			broken++
		}
	}
	if len(ds.Dropped) != broken {
		t.Errorf("Dropped = %d, want %d", len(ds.Dropped), broken)
	}
	if ds.Len() != 80-broken {
		t.Fatalf("Len() = %d, want %d", ds.Len(), 80-broken)
	}

	rows, cols := ds.X.Dims()
	if rows != ds.Len() || cols != 256 {
		t.Errorf("X dims = %dx%d, want %dx256", rows, cols, ds.Len())
	}

	train, test := ds.TrainIndices(), ds.TestIndices()
	if len(train)+len(test) != ds.Len() {
		t.Errorf("partition sizes %d + %d != %d", len(train), len(test), ds.Len())
	}
	if want := int(math.Round(float64(ds.Len()) * 0.2)); len(test) != want {
		t.Errorf("test size = %d, want %d", len(test), want)
	}
	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), train...), test...) {
		if seen[i] {
			t.Fatalf("record %d in both partitions", i)
		}
		seen[i] = true
	}

	for i, smi := range ds.Standardized {
		if smi == "" {
			t.Errorf("record %d has empty standardized SMILES", i)
		}
	}
	if ds.Scaffolds[0] == "" {
		t.Error("first fixture compound should have a ring scaffold")
	}

	if err := ds.Prepare(context.Background(), DefaultPrepareOptions()); err == nil {
		t.Error("second Prepare() should fail")
	}
}

func TestPrepare_Deterministic(t *testing.T) {
	a := preparedDataset(t, synthTSV(40, 40, false))
	b := preparedDataset(t, synthTSV(40, 40, false))
	if !mat.Equal(a.X, b.X) {
		t.Error("feature matrices differ between runs")
	}
	for i := range a.Splits {
		if a.Splits[i] != b.Splits[i] {
			t.Fatalf("split differs at %d", i)
		}
	}
}

func TestNew_InvalidTarget(t *testing.T) {
	tab := mustTable(t, synthTSV(3, 3, false))
	if _, err := New("x", tab, "other_property", TaskRegression); err == nil {
		t.Error("expected ConfigError for mismatched property")
	}
	_, err := New("x", tab, testProperty, "classification")
	var ce *errors.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("error = %v, want ConfigError", err)
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	ds := preparedDataset(t, synthTSV(30, 30, false))
	if err := ds.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(dir, ds.Name)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Len() != ds.Len() || got.Property != ds.Property {
		t.Fatalf("loaded %d records for %q, want %d for %q", got.Len(), got.Property, ds.Len(), ds.Property)
	}
	if !mat.Equal(got.X, ds.X) {
		t.Error("feature matrix changed on reload")
	}
	for i := range ds.Records {
		if got.Records[i] != ds.Records[i] || got.Splits[i] != ds.Splits[i] ||
			got.Scaffolds[i] != ds.Scaffolds[i] || got.Standardized[i] != ds.Standardized[i] {
			t.Fatalf("record %d differs after reload", i)
		}
	}
	if got.Fingerprint != ds.Fingerprint {
		t.Errorf("fingerprint = %+v, want %+v", got.Fingerprint, ds.Fingerprint)
	}
}

func TestSaveLoad_Standardizer(t *testing.T) {
	dir := t.TempDir()
	ds, err := New("salts", Filter(mustTable(t, synthTSV(20, 20, false)), "X", []string{"High"}), testProperty, TaskRegression)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	opts := DefaultPrepareOptions()
	opts.Fingerprint = chem.NewMorganFingerprint(2, 256)
	opts.Standardizer = chem.Standardizer{KeepAllFragments: true, KeepCharges: true}
	if err := ds.Prepare(context.Background(), opts); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if ds.Standardizer != opts.Standardizer {
		t.Fatalf("Standardizer = %+v, want %+v", ds.Standardizer, opts.Standardizer)
	}
	if err := ds.Save(dir); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := Load(dir, "salts")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Standardizer != opts.Standardizer {
		t.Errorf("reloaded Standardizer = %+v, want %+v", got.Standardizer, opts.Standardizer)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir(), "nope")
	var ae *errors.ArtifactError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want ArtifactError", err)
	}
	if !errors.Is(err, errors.ErrArtifactNotFound) {
		t.Error("error does not wrap ErrArtifactNotFound")
	}
}
