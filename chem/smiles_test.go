package chem

import (
	"errors"
	"testing"
)

// workshopSMILES are the adenosine A2A candidate structures used throughout the tests.
var workshopSMILES = []string{
	"OCCc1ccn2cnccc12",
	"C1CC1Oc1cc2ccncn2c1",
	"CNC(=O)c1nccc2cccn12",
}

func TestParseSMILES_Hydrogens(t *testing.T) {
	tests := []struct {
		name    string
		smiles  string
		wantH   []int
		wantArm []bool
	}{
		{"ethanol", "CCO", []int{3, 2, 1}, []bool{false, false, false}},
		{"pyridine", "c1ccncc1", []int{1, 1, 1, 0, 1, 1}, nil},
		{"pyrrole", "c1cc[nH]c1", []int{1, 1, 1, 1, 1}, nil},
		{"acetonitrile", "CC#N", []int{3, 0, 0}, nil},
		{"ammonium", "[NH4+]", []int{4}, nil},
		{"nitro", "C[N+](=O)[O-]", []int{3, 0, 0, 0}, nil},
		{"sulfone", "CS(=O)(=O)C", []int{3, 0, 0, 0, 3}, nil},
		{"kekule benzene", "C1=CC=CC=C1", []int{1, 1, 1, 1, 1, 1}, []bool{true, true, true, true, true, true}},
		{"cyclohexane", "C1CCCCC1", []int{2, 2, 2, 2, 2, 2}, []bool{false, false, false, false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseSMILES(tt.smiles)
			if err != nil {
				t.Fatalf("ParseSMILES(%q) error: %v", tt.smiles, err)
			}
			if m.NumAtoms() != len(tt.wantH) {
				t.Fatalf("NumAtoms() = %d, want %d", m.NumAtoms(), len(tt.wantH))
			}
			for i, want := range tt.wantH {
				if got := m.Atoms[i].HCount; got != want {
					t.Errorf("atom %d HCount = %d, want %d", i, got, want)
				}
			}
			for i, want := range tt.wantArm {
				if got := m.Atoms[i].Aromatic; got != want {
					t.Errorf("atom %d Aromatic = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestParseSMILES_BracketAtoms(t *testing.T) {
	m, err := ParseSMILES("[2H]C[C@@H](F)[Fe+2].[O-2]")
	if err != nil {
		t.Fatalf("ParseSMILES error: %v", err)
	}
	if m.Atoms[0].Isotope != 2 || m.Atoms[0].Element != 1 {
		t.Errorf("atom 0 = %+v, want deuterium", m.Atoms[0])
	}
	if m.Atoms[2].HCount != 1 {
		t.Errorf("chiral carbon HCount = %d, want 1", m.Atoms[2].HCount)
	}
	if m.Atoms[4].Element != 26 || m.Atoms[4].Charge != 2 {
		t.Errorf("iron atom = %+v, want Fe+2", m.Atoms[4])
	}
	if m.Atoms[5].Charge != -2 {
		t.Errorf("oxide charge = %d, want -2", m.Atoms[5].Charge)
	}
	if got := len(m.Fragments()); got != 2 {
		t.Errorf("Fragments() = %d, want 2", got)
	}
}

func TestParseSMILES_Errors(t *testing.T) {
	tests := []struct {
		name   string
		smiles string
	}{
		{"empty", ""},
		{"unclosed ring", "C1CC"},
		{"unclosed branch", "C(C"},
		{"unbalanced paren", "CC)"},
		{"dangling bond", "CC="},
		{"leading bond", "=CC"},
		{"unknown element", "[Xx]"},
		{"unexpected character", "CQC"},
		{"aromatic outside ring", "cc"},
		{"bad percent closure", "C%1CC"},
		{"unterminated bracket", "C[NH"},
		{"self ring closure", "C11"},
		{"odd aromatic carbocycle", "c1cccc1"},
		{"pyrrole without hydrogen", "c1ccnc1"},
		{"odd fused system", "c1ccc2cccc2c1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSMILES(tt.smiles)
			if err == nil {
				t.Fatalf("ParseSMILES(%q) expected error", tt.smiles)
			}
			var smiErr *SMILESError
			if !errors.As(err, &smiErr) {
				t.Errorf("error %T is not *SMILESError", err)
			}
		})
	}
}

func TestParseSMILES_Kekulizable(t *testing.T) {
	// 芳香族として書かれていても Kekulé 構造を持つもの
	for _, in := range []string{
		"c1cc[nH]c1",
		"Cn1cccc1",
		"o1cccc1",
		"s1cccc1",
		"c1c[nH]cn1",
		"O=c1cccc[nH]1",
		"[O-][n+]1ccccc1",
		"[cH-]1cccc1",
		"c1ccc2ccccc2c1",
		"Nc1ncnc2[nH]cnc12",
		"C1CC1Oc1cc2ccncn2c1",
	} {
		if _, err := ParseSMILES(in); err != nil {
			t.Errorf("ParseSMILES(%q) error: %v", in, err)
		}
	}
}

func TestCanonicalSMILES(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
		want   string
	}{
		{"ethanol", []string{"CCO", "OCC", "C(O)C"}, "CCO"},
		{"acetic acid", []string{"CC(=O)O", "OC(C)=O", "O=C(O)C"}, "CC(=O)O"},
		{"benzene", []string{"c1ccccc1", "C1=CC=CC=C1", "C1C=CC=CC=1"}, "c1ccccc1"},
		{"pyridine", []string{"c1ccncc1", "n1ccccc1", "C1=CC=NC=C1"}, "c1ccncc1"},
		{"cyclohexane", []string{"C1CCCCC1", "C%10CCCCC%10"}, "C1CCCCC1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, in := range tt.inputs {
				got := CanonicalSMILES(MustParseSMILES(in))
				if got != tt.want {
					t.Errorf("CanonicalSMILES(%q) = %q, want %q", in, got, tt.want)
				}
			}
		})
	}
}

func TestCanonicalSMILES_OrderIndependent(t *testing.T) {
	pairs := [][2]string{
		{"Oc1ccccc1", "c1ccc(O)cc1"},
		{"c1cc[nH]c1", "C1=CNC=C1"},
		{"c1ccc2ccccc2c1", "C1=CC=C2C=CC=CC2=C1"},
		{"CC(C)(C)c1ccc(N)cc1", "Nc1ccc(cc1)C(C)(C)C"},
		{"OCCc1ccn2cnccc12", "c12c(CCO)ccn1cncc2"},
	}
	for _, p := range pairs {
		a := CanonicalSMILES(MustParseSMILES(p[0]))
		b := CanonicalSMILES(MustParseSMILES(p[1]))
		if a != b {
			t.Errorf("canonical forms differ: %q -> %q, %q -> %q", p[0], a, p[1], b)
		}
	}
}

func TestCanonicalSMILES_RoundTrip(t *testing.T) {
	inputs := append([]string{
		"CC(=O)Nc1ccc(O)cc1",
		"C[N+](=O)[O-]",
		"c1ccc2c(c1)-c1ccccc1-2",
		"[2H]C([2H])([2H])O",
		"CC.O",
	}, workshopSMILES...)

	for _, in := range inputs {
		first := CanonicalSMILES(MustParseSMILES(in))
		m, err := ParseSMILES(first)
		if err != nil {
			t.Errorf("canonical output %q of %q does not parse: %v", first, in, err)
			continue
		}
		if second := CanonicalSMILES(m); second != first {
			t.Errorf("canonical SMILES not stable for %q: %q then %q", in, first, second)
		}
	}
}

func TestRings(t *testing.T) {
	m := MustParseSMILES("c1ccc2ccccc2c1")
	rings := m.Rings()
	if len(rings) != 2 {
		t.Fatalf("naphthalene Rings() = %d, want 2", len(rings))
	}
	for _, r := range rings {
		if len(r) != 6 {
			t.Errorf("ring size = %d, want 6", len(r))
		}
	}

	m = MustParseSMILES("CC1CC1")
	if m.InRing(0) {
		t.Error("methyl carbon reported in ring")
	}
	for i := 1; i < 4; i++ {
		if !m.InRing(i) {
			t.Errorf("atom %d not reported in ring", i)
		}
	}
}
