package chem

// MurckoScaffold returns the Bemis-Murcko framework of m: ring systems and the
// linkers between them. Atoms double-bonded to a scaffold atom (carbonyl
// oxygens, exocyclic methylenes) are kept. Acyclic molecules yield nil.
func MurckoScaffold(m *Mol) *Mol {
	n := len(m.Atoms)
	keep := make([]bool, n)
	degree := make([]int, n)
	for i := range m.Atoms {
		keep[i] = m.Atoms[i].Element != 1
	}
	for i := range m.Atoms {
		for _, nb := range m.adj[i] {
			if keep[nb.Atom] {
				degree[i]++
			}
		}
	}

	hasRing := false
	for i := range m.Atoms {
		if keep[i] && m.InRing(i) {
			hasRing = true
			break
		}
	}
	if !hasRing {
		return nil
	}

	// Peel terminal chain atoms until only rings and linkers remain.
	queue := make([]int, 0, n)
	for i := range m.Atoms {
		if keep[i] && degree[i] <= 1 && !m.InRing(i) {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if !keep[a] {
			continue
		}
		keep[a] = false
		for _, nb := range m.adj[a] {
			if !keep[nb.Atom] {
				continue
			}
			degree[nb.Atom]--
			if degree[nb.Atom] <= 1 && !m.InRing(nb.Atom) {
				queue = append(queue, nb.Atom)
			}
		}
	}

	restore := make([]int, 0)
	for i := range m.Atoms {
		if keep[i] || m.Atoms[i].Element == 1 || m.HeavyDegree(i) != 1 {
			continue
		}
		nb := m.adj[i][0]
		for _, cand := range m.adj[i] {
			if m.Atoms[cand.Atom].Element != 1 {
				nb = cand
				break
			}
		}
		if keep[nb.Atom] && m.Bonds[nb.Bond].Order == BondDouble {
			restore = append(restore, i)
		}
	}
	for _, i := range restore {
		keep[i] = true
	}
	return m.Subgraph(keep)
}

// MurckoScaffoldSMILES returns the canonical SMILES of the scaffold of m, or
// "" for acyclic molecules.
func MurckoScaffoldSMILES(m *Mol) string {
	sc := MurckoScaffold(m)
	if sc == nil {
		return ""
	}
	return CanonicalSMILES(sc)
}
