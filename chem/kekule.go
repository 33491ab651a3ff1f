package chem

// kekuleBudget bounds the matching search; aromatic systems in drug-like
// molecules resolve in far fewer steps.
const kekuleBudget = 1 << 16

// kekulizable reports whether the aromatic atoms of the input can be given
// alternating single and double bonds. Atoms that donate a lone pair or
// already carry a double bond need no partner; every other aromatic atom must
// be paired with a neighbour over an aromatic bond.
func kekulizable(m *Mol) bool {
	k := &kekuleMatcher{
		m:    m,
		need: make([]bool, len(m.Atoms)),
		mate: make([]int, len(m.Atoms)),
	}
	for i, a := range m.Atoms {
		k.need[i] = a.Aromatic && needsPiBond(m, i)
		k.mate[i] = -1
	}
	return k.solve()
}

// needsPiBond reports whether aromatic atom i must take a double bond in a
// Kekulé structure.
func needsPiBond(m *Mol, i int) bool {
	if hasDoubleBond(m, i) {
		return false
	}
	a := m.Atoms[i]
	switch a.Element {
	case 0, 5:
		return false
	case 7, 15, 33:
		// pyrrole 型の窒素は孤立電子対を供与する
		return !(a.Charge == 0 && (a.HCount > 0 || m.HeavyDegree(i) == 3))
	case 8, 16, 34, 52:
		return a.Charge == 1
	case 6:
		return a.Charge == 0
	}
	return true
}

type kekuleMatcher struct {
	m     *Mol
	need  []bool
	mate  []int
	steps int
}

func (k *kekuleMatcher) partners(i int) []int {
	var out []int
	for _, nb := range k.m.adj[i] {
		if k.m.Bonds[nb.Bond].Order == BondAromatic && k.need[nb.Atom] && k.mate[nb.Atom] < 0 {
			out = append(out, nb.Atom)
		}
	}
	return out
}

// solve pairs the most constrained unmatched atom first and backtracks.
func (k *kekuleMatcher) solve() bool {
	if k.steps++; k.steps > kekuleBudget {
		return true // undecided; accept rather than reject a valid structure
	}
	best, bestOpts := -1, []int(nil)
	for i, nd := range k.need {
		if !nd || k.mate[i] >= 0 {
			continue
		}
		opts := k.partners(i)
		if len(opts) == 0 {
			return false
		}
		if best < 0 || len(opts) < len(bestOpts) {
			best, bestOpts = i, opts
		}
	}
	if best < 0 {
		return true
	}
	for _, j := range bestOpts {
		k.mate[best], k.mate[j] = j, best
		if k.solve() {
			return true
		}
		k.mate[best], k.mate[j] = -1, -1
	}
	return false
}
