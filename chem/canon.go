package chem

import (
	"slices"
	"strconv"
	"strings"
)

// atomInvariant is the initial ordering key used for canonical ranking.
func (m *Mol) atomInvariant(i int) []int {
	a := m.Atoms[i]
	ring := 0
	if m.InRing(i) {
		ring = 1
	}
	arom := 0
	if a.Aromatic {
		arom = 1
	}
	return []int{a.Element, m.HeavyDegree(i), m.TotalHydrogens(i), a.Charge, a.Isotope, arom, ring, a.Class}
}

// denseRanks assigns ranks 0..k-1 to keys in lexicographic order; equal keys
// share a rank. It returns the ranks and the number of distinct classes.
func denseRanks(keys [][]int) ([]int, int) {
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int { return slices.Compare(keys[x], keys[y]) })
	ranks := make([]int, len(keys))
	classes := 0
	for k, idx := range order {
		if k > 0 && slices.Compare(keys[order[k-1]], keys[idx]) != 0 {
			classes++
		}
		ranks[idx] = classes
	}
	if len(keys) > 0 {
		classes++
	}
	return ranks, classes
}

// refine splits rank classes by the sorted (rank, bond) pairs of neighbors
// until the partition is stable.
func (m *Mol) refine(ranks []int, classes int) ([]int, int) {
	for {
		keys := make([][]int, len(m.Atoms))
		for i := range m.Atoms {
			env := make([]int, 0, len(m.adj[i]))
			for _, nb := range m.adj[i] {
				env = append(env, ranks[nb.Atom]*8+int(m.Bonds[nb.Bond].Order))
			}
			slices.Sort(env)
			keys[i] = append([]int{ranks[i]}, env...)
		}
		next, n := denseRanks(keys)
		if n == classes {
			return next, n
		}
		ranks, classes = next, n
	}
}

// CanonicalRanks returns a ranking of atoms that is independent of input
// order. Symmetry-equivalent atoms are separated by breaking the lowest tie
// and refining again.
func (m *Mol) CanonicalRanks() []int {
	n := len(m.Atoms)
	keys := make([][]int, n)
	for i := range m.Atoms {
		keys[i] = m.atomInvariant(i)
	}
	ranks, classes := denseRanks(keys)
	ranks, classes = m.refine(ranks, classes)
	for classes < n {
		tied := lowestTiedRank(ranks)
		broke := false
		for i := range ranks {
			ranks[i] *= 2
			if ranks[i] == 2*tied && !broke {
				ranks[i]--
				broke = true
			}
		}
		keys := make([][]int, n)
		for i, r := range ranks {
			keys[i] = []int{r}
		}
		ranks, classes = denseRanks(keys)
		ranks, classes = m.refine(ranks, classes)
	}
	return ranks
}

func lowestTiedRank(ranks []int) int {
	count := map[int]int{}
	for _, r := range ranks {
		count[r]++
	}
	lowest := -1
	for r, c := range count {
		if c > 1 && (lowest < 0 || r < lowest) {
			lowest = r
		}
	}
	return lowest
}

// CanonicalSMILES writes a canonical SMILES string for m. Fragments are
// written in rank order of their first atom and joined with '.'.
func CanonicalSMILES(m *Mol) string {
	if m == nil || len(m.Atoms) == 0 {
		return ""
	}
	w := newSMILESWriter(m, m.CanonicalRanks())
	return w.write()
}

type branch struct {
	atom int
	bond int
}

type smilesWriter struct {
	m        *Mol
	ranks    []int
	visited  []bool
	closed   []bool
	children [][]branch
	rings    [][]int // ring closure bonds per atom, in discovery order
	digits   map[int]int
	inUse    map[int]bool
	sb       strings.Builder
}

func newSMILESWriter(m *Mol, ranks []int) *smilesWriter {
	n := len(m.Atoms)
	return &smilesWriter{
		m:        m,
		ranks:    ranks,
		visited:  make([]bool, n),
		closed:   make([]bool, len(m.Bonds)),
		children: make([][]branch, n),
		rings:    make([][]int, n),
		digits:   map[int]int{},
		inUse:    map[int]bool{},
	}
}

func (w *smilesWriter) write() string {
	order := make([]int, len(w.m.Atoms))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(x, y int) int { return w.ranks[x] - w.ranks[y] })
	first := true
	for _, start := range order {
		if w.visited[start] {
			continue
		}
		w.walk(start, -1)
		if !first {
			w.sb.WriteByte('.')
		}
		first = false
		w.emit(start, -1)
	}
	return w.sb.String()
}

func (w *smilesWriter) sortedNeighbors(a int) []Neighbor {
	nbrs := slices.Clone(w.m.adj[a])
	slices.SortFunc(nbrs, func(x, y Neighbor) int { return w.ranks[x.Atom] - w.ranks[y.Atom] })
	return nbrs
}

// walk builds the DFS spanning tree and records ring closures.
func (w *smilesWriter) walk(a, parentBond int) {
	w.visited[a] = true
	for _, nb := range w.sortedNeighbors(a) {
		if nb.Bond == parentBond {
			continue
		}
		if w.visited[nb.Atom] {
			if !w.closed[nb.Bond] {
				w.closed[nb.Bond] = true
				w.rings[a] = append(w.rings[a], nb.Bond)
				w.rings[nb.Atom] = append(w.rings[nb.Atom], nb.Bond)
			}
			continue
		}
		w.children[a] = append(w.children[a], branch{atom: nb.Atom, bond: nb.Bond})
		w.walk(nb.Atom, nb.Bond)
	}
}

func (w *smilesWriter) emit(a, parentBond int) {
	if parentBond >= 0 {
		w.sb.WriteString(w.bondSymbol(parentBond))
	}
	w.sb.WriteString(atomSymbol(w.m, a))

	var release []int
	for _, b := range w.rings[a] {
		if d, ok := w.digits[b]; ok {
			w.sb.WriteString(ringDigit(d))
			release = append(release, d)
			delete(w.digits, b)
			continue
		}
		d := 1
		for w.inUse[d] {
			d++
		}
		w.inUse[d] = true
		w.digits[b] = d
		w.sb.WriteString(w.bondSymbol(b))
		w.sb.WriteString(ringDigit(d))
	}
	for _, d := range release {
		delete(w.inUse, d)
	}

	kids := w.children[a]
	for k, c := range kids {
		if k < len(kids)-1 {
			w.sb.WriteByte('(')
			w.emit(c.atom, c.bond)
			w.sb.WriteByte(')')
			continue
		}
		w.emit(c.atom, c.bond)
	}
}

func ringDigit(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

func (w *smilesWriter) bondSymbol(b int) string {
	bond := w.m.Bonds[b]
	bothAromatic := w.m.Atoms[bond.A].Aromatic && w.m.Atoms[bond.B].Aromatic
	switch bond.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	case BondQuadruple:
		return "$"
	case BondAromatic:
		if bothAromatic {
			return ""
		}
		return ":"
	default:
		if bothAromatic {
			return "-"
		}
		return ""
	}
}

// atomSymbol writes an atom bare when its hydrogens can be implied, otherwise
// in brackets.
func atomSymbol(m *Mol, i int) string {
	a := m.Atoms[i]
	sym := ElementSymbol(a.Element)
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}
	if a.Element == 0 && a.Charge == 0 && a.Isotope == 0 && a.HCount == 0 && a.Class == 0 {
		return "*"
	}
	bare := isOrganicSubset(a.Element) && a.Charge == 0 && a.Isotope == 0 && a.Class == 0 &&
		m.implicitHydrogens(i) == a.HCount
	if bare && a.Aromatic {
		_, bare = organicAromatic[sym]
	}
	if bare {
		return sym
	}
	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope > 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(sym)
	if a.HCount > 0 {
		sb.WriteByte('H')
		if a.HCount > 1 {
			sb.WriteString(strconv.Itoa(a.HCount))
		}
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteString("-" + strconv.Itoa(-a.Charge))
	}
	if a.Class > 0 {
		sb.WriteString(":" + strconv.Itoa(a.Class))
	}
	sb.WriteByte(']')
	return sb.String()
}
