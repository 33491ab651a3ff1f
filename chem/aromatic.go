package chem

// perceiveAromaticity marks 5-7 membered rings obeying the 4n+2 rule as
// aromatic. Rings are revisited until nothing changes so that a ring fused to
// an already aromatic ring can borrow its shared atoms.
func perceiveAromaticity(m *Mol) {
	rings := m.Rings()
	for changed := true; changed; {
		changed = false
		for _, ring := range rings {
			if len(ring) < 5 || len(ring) > 7 {
				continue
			}
			bonds := m.ringBondsOf(ring)
			if len(bonds) != len(ring) || allAromatic(m, bonds) {
				continue
			}
			if !huckel(m, ring) {
				continue
			}
			for _, a := range ring {
				m.Atoms[a].Aromatic = true
			}
			for _, b := range bonds {
				m.Bonds[b].Order = BondAromatic
			}
			changed = true
		}
	}
}

func allAromatic(m *Mol, bonds []int) bool {
	for _, b := range bonds {
		if m.Bonds[b].Order != BondAromatic {
			return false
		}
	}
	return true
}

func huckel(m *Mol, ring []int) bool {
	inRing := make(map[int]bool, len(ring))
	for _, a := range ring {
		inRing[a] = true
	}
	electrons := 0
	for _, a := range ring {
		e, ok := piElectrons(m, a, inRing)
		if !ok {
			return false
		}
		electrons += e
	}
	return electrons >= 2 && (electrons-2)%4 == 0
}

// piElectrons estimates the pi electrons atom i donates to the ring.
func piElectrons(m *Mol, i int, ring map[int]bool) (int, bool) {
	a := m.Atoms[i]
	if a.Aromatic {
		return aromaticAtomElectrons(m, i), true
	}
	var double *Neighbor
	for k, nb := range m.adj[i] {
		switch m.Bonds[nb.Bond].Order {
		case BondTriple, BondQuadruple:
			return 0, false
		case BondDouble:
			if double != nil {
				return 0, false
			}
			double = &m.adj[i][k]
		}
	}
	if double != nil {
		other := m.Atoms[double.Atom]
		switch {
		case ring[double.Atom], m.InRing(double.Atom):
			return 1, true // in this ring or a fused one
		case isHetero(other.Element) && a.Element == 6:
			return 0, true // exocyclic C=O, C=S, C=N
		default:
			return 0, false
		}
	}
	switch a.Element {
	case 7, 15:
		if a.Charge == 0 && m.HeavyDegree(i)+m.TotalHydrogens(i) == 3 {
			return 2, true
		}
	case 8, 16, 34:
		if a.Charge == 0 && m.HeavyDegree(i) == 2 {
			return 2, true
		}
	case 6:
		if a.Charge == -1 {
			return 2, true
		}
		if a.Charge == 1 {
			return 0, true
		}
	}
	return 0, false
}

// aromaticAtomElectrons handles atoms already flagged aromatic, such as the
// shared atoms of a fused ring perceived earlier or lowercase input atoms.
func aromaticAtomElectrons(m *Mol, i int) int {
	a := m.Atoms[i]
	switch a.Element {
	case 7, 15:
		if a.Charge == 0 && (a.HCount > 0 || m.HeavyDegree(i) == 3) && !hasDoubleBond(m, i) {
			return 2
		}
		return 1
	case 8, 16, 34:
		return 2
	default:
		if hasExocyclicHeteroDouble(m, i) {
			return 0
		}
		return 1
	}
}

func hasDoubleBond(m *Mol, i int) bool {
	for _, nb := range m.adj[i] {
		if m.Bonds[nb.Bond].Order == BondDouble {
			return true
		}
	}
	return false
}

func hasExocyclicHeteroDouble(m *Mol, i int) bool {
	for _, nb := range m.adj[i] {
		if m.Bonds[nb.Bond].Order == BondDouble && !m.BondInRing(nb.Bond) && isHetero(m.Atoms[nb.Atom].Element) {
			return true
		}
	}
	return false
}

func isHetero(z int) bool {
	return z != 6 && z != 1 && z != 0
}
