package chem

import (
	"slices"
	"strings"
	"testing"
)

func TestStandardizer(t *testing.T) {
	tests := []struct {
		name   string
		smiles string
		want   string
	}{
		{"salt stripped and neutralized", "CC(=O)[O-].[Na+]", "CC(=O)O"},
		{"protonated amine", "[NH3+]CC", "CCN"},
		{"explicit hydrogens", "[H]OC([H])([H])[H]", "CO"},
		{"kekule input", "C1=CC=NC=C1", "c1ccncc1"},
		{"already standard", "CCO", "CCO"},
	}

	var st Standardizer
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, m, err := st.StandardizeSMILES(tt.smiles)
			if err != nil {
				t.Fatalf("StandardizeSMILES(%q) error: %v", tt.smiles, err)
			}
			if got != tt.want {
				t.Errorf("StandardizeSMILES(%q) = %q, want %q", tt.smiles, got, tt.want)
			}
			if m == nil {
				t.Error("standardized molecule is nil")
			}
		})
	}
}

func TestStandardizer_KeepsZwitterions(t *testing.T) {
	var st Standardizer
	got, _, err := st.StandardizeSMILES("C[N+](=O)[O-]")
	if err != nil {
		t.Fatalf("StandardizeSMILES error: %v", err)
	}
	if !strings.Contains(got, "[N+]") || !strings.Contains(got, "[O-]") {
		t.Errorf("nitro group charges lost: %q", got)
	}
}

func TestStandardizer_Deterministic(t *testing.T) {
	var st Standardizer
	for _, smi := range workshopSMILES {
		a, _, err := st.StandardizeSMILES(smi)
		if err != nil {
			t.Fatalf("StandardizeSMILES(%q) error: %v", smi, err)
		}
		b, _, _ := st.StandardizeSMILES(a)
		if a != b {
			t.Errorf("standardization not idempotent: %q -> %q -> %q", smi, a, b)
		}
	}
}

func TestStandardizer_InvalidInput(t *testing.T) {
	var st Standardizer
	if _, _, err := st.StandardizeSMILES("not a molecule"); err == nil {
		t.Error("expected error for unparsable SMILES")
	}
}

func TestMurckoScaffold(t *testing.T) {
	tests := []struct {
		name   string
		smiles string
		want   string // parsed and canonicalized before comparison, "" means acyclic
	}{
		{"toluene", "Cc1ccccc1", "c1ccccc1"},
		{"acyclic", "CCCCO", ""},
		{"n-methylpyrrole", "Cn1cccc1", "c1cc[nH]c1"},
		{"ring carbonyl kept", "CC1CCCCC1=O", "O=C1CCCCC1"},
		{"chain carbonyl dropped", "CC(=O)c1ccccc1", "c1ccccc1"},
		{"linker kept", "Cc1ccc(CCc2ccncc2)cc1", "c1ccc(CCc2ccncc2)cc1"},
		{"workshop", "CNC(=O)c1nccc2cccn12", "c1nccc2cccn12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MurckoScaffoldSMILES(MustParseSMILES(tt.smiles))
			want := ""
			if tt.want != "" {
				want = CanonicalSMILES(MustParseSMILES(tt.want))
			}
			if got != want {
				t.Errorf("MurckoScaffoldSMILES(%q) = %q, want %q", tt.smiles, got, want)
			}
		})
	}
}

func TestMorganFingerprint(t *testing.T) {
	fp := NewMorganFingerprint(3, 2048)
	if err := fp.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	t.Run("shape and binary", func(t *testing.T) {
		bits := fp.Compute(MustParseSMILES(workshopSMILES[0]))
		if len(bits) != 2048 {
			t.Fatalf("len = %d, want 2048", len(bits))
		}
		on := 0
		for _, b := range bits {
			if b > 1 {
				t.Fatalf("non-binary value %d", b)
			}
			on += int(b)
		}
		if on == 0 {
			t.Error("no bits set")
		}
	})

	t.Run("input order independent", func(t *testing.T) {
		pairs := [][2]string{
			{"CCO", "OCC"},
			{"c1ccccc1", "C1=CC=CC=C1"},
			{"OCCc1ccn2cnccc12", "c12c(CCO)ccn1cncc2"},
		}
		for _, p := range pairs {
			a := fp.Compute(MustParseSMILES(p[0]))
			b := fp.Compute(MustParseSMILES(p[1]))
			if !slices.Equal(a, b) {
				t.Errorf("fingerprints differ for %q and %q", p[0], p[1])
			}
		}
	})

	t.Run("distinguishes structures", func(t *testing.T) {
		a := fp.Compute(MustParseSMILES("c1ccccc1"))
		b := fp.Compute(MustParseSMILES("c1ccncc1"))
		if slices.Equal(a, b) {
			t.Error("benzene and pyridine share a fingerprint")
		}
	})

	t.Run("radius zero counts atom types", func(t *testing.T) {
		bits := NewMorganFingerprint(0, 4096).Compute(MustParseSMILES("CCO"))
		on := 0
		for _, b := range bits {
			on += int(b)
		}
		if on < 1 || on > 3 {
			t.Errorf("radius-0 bits = %d, want 1..3", on)
		}
	})

	t.Run("names", func(t *testing.T) {
		names := NewMorganFingerprint(2, 4).Names()
		want := []string{"MorganFP_0", "MorganFP_1", "MorganFP_2", "MorganFP_3"}
		if !slices.Equal(names, want) {
			t.Errorf("Names() = %v, want %v", names, want)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if err := NewMorganFingerprint(-1, 2048).Validate(); err == nil {
			t.Error("expected error for negative radius")
		}
		if err := NewMorganFingerprint(2, 0).Validate(); err == nil {
			t.Error("expected error for zero bits")
		}
	})
}
