package chem

import "slices"

// BondInRing reports whether bond b is part of a cycle.
func (m *Mol) BondInRing(b int) bool {
	m.perceiveRingBonds()
	return m.ringBond[b]
}

// InRing reports whether atom i belongs to at least one cycle.
func (m *Mol) InRing(i int) bool {
	m.perceiveRingBonds()
	for _, nb := range m.adj[i] {
		if m.ringBond[nb.Bond] {
			return true
		}
	}
	return false
}

// NumRingBonds counts the ring bonds at atom i.
func (m *Mol) NumRingBonds(i int) int {
	m.perceiveRingBonds()
	n := 0
	for _, nb := range m.adj[i] {
		if m.ringBond[nb.Bond] {
			n++
		}
	}
	return n
}

// A bond is a ring bond iff its ends remain connected without it.
func (m *Mol) perceiveRingBonds() {
	if m.ringBond != nil && len(m.ringBond) == len(m.Bonds) {
		return
	}
	m.ringBond = make([]bool, len(m.Bonds))
	for b := range m.Bonds {
		m.ringBond[b] = m.shortestPath(m.Bonds[b].A, m.Bonds[b].B, b) != nil
	}
}

// shortestPath returns the atoms of a shortest path from src to dst that does
// not use bond skip, or nil when none exists.
func (m *Mol) shortestPath(src, dst, skip int) []int {
	prev := make([]int, len(m.Atoms))
	for i := range prev {
		prev[i] = -1
	}
	prev[src] = src
	queue := []int{src}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if a == dst {
			break
		}
		for _, nb := range m.adj[a] {
			if nb.Bond == skip || prev[nb.Atom] >= 0 {
				continue
			}
			prev[nb.Atom] = a
			queue = append(queue, nb.Atom)
		}
	}
	if prev[dst] < 0 {
		return nil
	}
	path := []int{dst}
	for a := dst; a != src; a = prev[a] {
		path = append(path, prev[a])
	}
	slices.Reverse(path)
	return path
}

// Rings returns the smallest cycle through each ring bond, deduplicated.
// Each ring lists its atoms in path order. Rings are ordered by size, then by
// their sorted atom indices.
func (m *Mol) Rings() [][]int {
	m.perceiveRingBonds()
	seen := map[string]bool{}
	var rings [][]int
	for b, inRing := range m.ringBond {
		if !inRing {
			continue
		}
		ring := m.shortestPath(m.Bonds[b].A, m.Bonds[b].B, b)
		key := ringKey(ring)
		if seen[key] {
			continue
		}
		seen[key] = true
		rings = append(rings, ring)
	}
	slices.SortFunc(rings, func(x, y []int) int {
		if len(x) != len(y) {
			return len(x) - len(y)
		}
		return slices.Compare(sortedCopy(x), sortedCopy(y))
	})
	return rings
}

func sortedCopy(xs []int) []int {
	c := slices.Clone(xs)
	slices.Sort(c)
	return c
}

func ringKey(ring []int) string {
	c := sortedCopy(ring)
	b := make([]byte, 0, len(c)*3)
	for _, a := range c {
		b = append(b, byte(a>>8), byte(a), ',')
	}
	return string(b)
}

// ringBondsOf returns the bond indices closing the atom cycle ring.
func (m *Mol) ringBondsOf(ring []int) []int {
	bonds := make([]int, 0, len(ring))
	for i, a := range ring {
		b := m.BondBetween(a, ring[(i+1)%len(ring)])
		if b >= 0 {
			bonds = append(bonds, b)
		}
	}
	return bonds
}
