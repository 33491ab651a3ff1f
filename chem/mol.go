package chem

import "slices"

// BondOrder is the multiplicity of a bond. BondAromatic marks a delocalized bond.
type BondOrder uint8

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondQuadruple
	BondAromatic
)

// valence is the bond's contribution to an atom's explicit valence.
// Aromatic bonds count as one; the extra pi electron is added per atom.
func (o BondOrder) valence() int {
	switch o {
	case BondDouble:
		return 2
	case BondTriple:
		return 3
	case BondQuadruple:
		return 4
	default:
		return 1
	}
}

// Atom is a heavy (or explicit hydrogen) atom of a hydrogen-suppressed graph.
type Atom struct {
	Element  int // atomic number, 0 for '*'
	Isotope  int
	Charge   int
	HCount   int // total attached hydrogens not present as explicit atoms
	Aromatic bool
	Class    int
}

// Bond connects atoms A and B.
type Bond struct {
	A, B  int
	Order BondOrder
}

// Other returns the atom bonded to i through b.
func (b Bond) Other(i int) int {
	if b.A == i {
		return b.B
	}
	return b.A
}

// Neighbor is one adjacency entry: the neighboring atom and the bond index.
type Neighbor struct {
	Atom int
	Bond int
}

// Mol is an undirected molecular graph.
type Mol struct {
	Atoms []Atom
	Bonds []Bond
	adj   [][]Neighbor

	ringBond []bool // lazily computed, invalidated on mutation
}

// NewMol returns an empty molecule.
func NewMol() *Mol {
	return &Mol{}
}

// NumAtoms returns the number of atoms.
func (m *Mol) NumAtoms() int { return len(m.Atoms) }

// NumBonds returns the number of bonds.
func (m *Mol) NumBonds() int { return len(m.Bonds) }

// AddAtom appends an atom and returns its index.
func (m *Mol) AddAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	m.ringBond = nil
	return len(m.Atoms) - 1
}

// AddBond connects two atoms and returns the bond index.
func (m *Mol) AddBond(a, b int, order BondOrder) int {
	idx := len(m.Bonds)
	m.Bonds = append(m.Bonds, Bond{A: a, B: b, Order: order})
	m.adj[a] = append(m.adj[a], Neighbor{Atom: b, Bond: idx})
	m.adj[b] = append(m.adj[b], Neighbor{Atom: a, Bond: idx})
	m.ringBond = nil
	return idx
}

// BondBetween returns the bond index joining a and b, or -1.
func (m *Mol) BondBetween(a, b int) int {
	for _, nb := range m.adj[a] {
		if nb.Atom == b {
			return nb.Bond
		}
	}
	return -1
}

// Neighbors returns the adjacency list of atom i. The slice must not be modified.
func (m *Mol) Neighbors(i int) []Neighbor { return m.adj[i] }

// Degree returns the number of explicit neighbors of atom i.
func (m *Mol) Degree(i int) int { return len(m.adj[i]) }

// HeavyDegree returns the number of non-hydrogen neighbors of atom i.
func (m *Mol) HeavyDegree(i int) int {
	n := 0
	for _, nb := range m.adj[i] {
		if m.Atoms[nb.Atom].Element != 1 {
			n++
		}
	}
	return n
}

// TotalHydrogens counts implicit plus explicit hydrogen neighbors of atom i.
func (m *Mol) TotalHydrogens(i int) int {
	h := m.Atoms[i].HCount
	for _, nb := range m.adj[i] {
		if m.Atoms[nb.Atom].Element == 1 {
			h++
		}
	}
	return h
}

// NumHeavyAtoms counts atoms that are not hydrogen.
func (m *Mol) NumHeavyAtoms() int {
	n := 0
	for _, a := range m.Atoms {
		if a.Element != 1 {
			n++
		}
	}
	return n
}

func (m *Mol) bondValenceSum(i int) int {
	sum := 0
	for _, nb := range m.adj[i] {
		sum += m.Bonds[nb.Bond].Order.valence()
	}
	return sum
}

// implicitHydrogens returns the hydrogen count a bare organic-subset atom
// would receive from its default valences in the current graph.
func (m *Mol) implicitHydrogens(i int) int {
	a := m.Atoms[i]
	vals, ok := defaultValences[a.Element]
	if !ok {
		return 0
	}
	sum := m.bondValenceSum(i)
	if a.Aromatic {
		h := vals[0] - sum - 1
		if h < 0 {
			return 0
		}
		return h
	}
	for _, v := range vals {
		if v >= sum {
			return v - sum
		}
	}
	return 0
}

// Clone returns a deep copy.
func (m *Mol) Clone() *Mol {
	c := &Mol{
		Atoms: append([]Atom(nil), m.Atoms...),
		Bonds: append([]Bond(nil), m.Bonds...),
		adj:   make([][]Neighbor, len(m.adj)),
	}
	for i, nbrs := range m.adj {
		c.adj[i] = append([]Neighbor(nil), nbrs...)
	}
	return c
}

// Subgraph returns the molecule induced by the atoms with keep[i] set.
// Hydrogens are added to kept atoms to compensate for removed non-aromatic
// bonds, so the valence of every kept atom is preserved.
func (m *Mol) Subgraph(keep []bool) *Mol {
	sub := NewMol()
	index := make([]int, len(m.Atoms))
	for i, a := range m.Atoms {
		index[i] = -1
		if !keep[i] {
			continue
		}
		for _, nb := range m.adj[i] {
			if keep[nb.Atom] {
				continue
			}
			if m.Atoms[nb.Atom].Element == 1 {
				a.HCount++
				continue
			}
			if o := m.Bonds[nb.Bond].Order; o != BondAromatic {
				a.HCount += o.valence()
			}
		}
		index[i] = sub.AddAtom(a)
	}
	for _, b := range m.Bonds {
		if keep[b.A] && keep[b.B] {
			sub.AddBond(index[b.A], index[b.B], b.Order)
		}
	}
	return sub
}

// Fragments returns the connected components as sorted atom index lists,
// ordered by their lowest atom index.
func (m *Mol) Fragments() [][]int {
	seen := make([]bool, len(m.Atoms))
	var frags [][]int
	for start := range m.Atoms {
		if seen[start] {
			continue
		}
		var frag []int
		stack := []int{start}
		seen[start] = true
		for len(stack) > 0 {
			a := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			frag = append(frag, a)
			for _, nb := range m.adj[a] {
				if !seen[nb.Atom] {
					seen[nb.Atom] = true
					stack = append(stack, nb.Atom)
				}
			}
		}
		slices.Sort(frag)
		frags = append(frags, frag)
	}
	return frags
}
