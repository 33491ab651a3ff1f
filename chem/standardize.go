package chem

// Standardizer normalizes input structures so that equivalent molecules map
// to one canonical SMILES. The zero value applies every step.
type Standardizer struct {
	KeepAllFragments bool
	KeepCharges      bool
}

// StandardizeSMILES parses s and returns the standardized canonical SMILES.
func (st Standardizer) StandardizeSMILES(s string) (string, *Mol, error) {
	m, err := ParseSMILES(s)
	if err != nil {
		return "", nil, err
	}
	m = st.Standardize(m)
	return CanonicalSMILES(m), m, nil
}

// Standardize returns a standardized copy of m: explicit hydrogens folded
// into their parents, largest fragment kept, simple charges neutralized.
func (st Standardizer) Standardize(m *Mol) *Mol {
	out := RemoveHydrogens(m)
	if !st.KeepAllFragments {
		out = LargestFragment(out)
	}
	if !st.KeepCharges {
		out = Neutralize(out)
	}
	return out
}

// RemoveHydrogens folds plain explicit hydrogen atoms into the H count of
// their heavy neighbor. Charged, isotopic or unbonded hydrogens are kept.
func RemoveHydrogens(m *Mol) *Mol {
	keep := make([]bool, len(m.Atoms))
	removed := false
	for i, a := range m.Atoms {
		keep[i] = true
		if a.Element != 1 || a.Charge != 0 || a.Isotope != 0 || len(m.adj[i]) != 1 {
			continue
		}
		if m.Atoms[m.adj[i][0].Atom].Element == 1 {
			continue
		}
		keep[i] = false
		removed = true
	}
	if !removed {
		return m.Clone()
	}
	return m.Subgraph(keep)
}

// LargestFragment keeps the fragment with the most heavy atoms. Ties go to
// the fragment whose canonical SMILES sorts first.
func LargestFragment(m *Mol) *Mol {
	frags := m.Fragments()
	if len(frags) <= 1 {
		return m.Clone()
	}
	var (
		best      *Mol
		bestHeavy int
		bestSMI   string
	)
	for _, frag := range frags {
		keep := make([]bool, len(m.Atoms))
		for _, a := range frag {
			keep[a] = true
		}
		sub := m.Subgraph(keep)
		heavy := sub.NumHeavyAtoms()
		smi := CanonicalSMILES(sub)
		if best == nil || heavy > bestHeavy || (heavy == bestHeavy && smi < bestSMI) {
			best, bestHeavy, bestSMI = sub, heavy, smi
		}
	}
	return best
}

// Neutralize removes charges that can be balanced by adding or removing
// hydrogens. Charges on atoms bonded to an oppositely charged atom (nitro
// groups, N-oxides) and quaternary nitrogens are left untouched.
func Neutralize(m *Mol) *Mol {
	out := m.Clone()
	for i := range out.Atoms {
		a := &out.Atoms[i]
		if a.Charge == 0 || out.hasOppositeNeighbor(i) {
			continue
		}
		switch {
		case a.Charge < 0 && (a.Element == 8 || a.Element == 16 || a.Element == 7 || a.Element == 6):
			a.HCount -= a.Charge
			a.Charge = 0
		case a.Charge > 0 && (a.Element == 7 || a.Element == 15) && a.HCount >= a.Charge:
			a.HCount -= a.Charge
			a.Charge = 0
		}
	}
	return out
}

func (m *Mol) hasOppositeNeighbor(i int) bool {
	c := m.Atoms[i].Charge
	for _, nb := range m.adj[i] {
		if nc := m.Atoms[nb.Atom].Charge; (c > 0 && nc < 0) || (c < 0 && nc > 0) {
			return true
		}
	}
	return false
}
