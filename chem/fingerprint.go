package chem

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"slices"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// MorganFingerprint computes ECFP-style circular fingerprints folded into a
// fixed number of bits.
type MorganFingerprint struct {
	Radius int
	NBits  int
}

// NewMorganFingerprint returns a fingerprinter with the given radius and width.
func NewMorganFingerprint(radius, nBits int) MorganFingerprint {
	return MorganFingerprint{Radius: radius, NBits: nBits}
}

// Validate checks the generator parameters.
func (f MorganFingerprint) Validate() error {
	if f.Radius < 0 {
		return errors.NewValidationError("radius", "must be >= 0", f.Radius)
	}
	if f.NBits <= 0 {
		return errors.NewValidationError("nbits", "must be > 0", f.NBits)
	}
	return nil
}

// Names returns the feature column names, MorganFP_0 .. MorganFP_{NBits-1}.
func (f MorganFingerprint) Names() []string {
	names := make([]string, f.NBits)
	for i := range names {
		names[i] = fmt.Sprintf("MorganFP_%d", i)
	}
	return names
}

// Compute returns a 0/1 vector of length NBits. Hydrogen atoms are ignored.
func (f MorganFingerprint) Compute(m *Mol) []uint8 {
	bits := make([]uint8, f.NBits)
	for _, id := range f.Identifiers(m) {
		bits[id%uint32(f.NBits)] = 1
	}
	return bits
}

// ComputeFloat is Compute with float64 output for feature matrices.
func (f MorganFingerprint) ComputeFloat(m *Mol) []float64 {
	out := make([]float64, f.NBits)
	for i, b := range f.Compute(m) {
		out[i] = float64(b)
	}
	return out
}

// Identifiers returns the unfolded environment identifiers for every heavy
// atom at every radius 0..Radius.
func (f MorganFingerprint) Identifiers(m *Mol) []uint32 {
	var heavy []int
	for i, a := range m.Atoms {
		if a.Element != 1 {
			heavy = append(heavy, i)
		}
	}
	ids := make([]uint32, len(m.Atoms))
	for _, i := range heavy {
		a := m.Atoms[i]
		ring := 0
		if m.InRing(i) {
			ring = 1
		}
		ids[i] = hashInts(a.Element, m.HeavyDegree(i), m.TotalHydrogens(i), a.Charge, a.Isotope, ring)
	}
	out := make([]uint32, 0, len(heavy)*(f.Radius+1))
	for _, i := range heavy {
		out = append(out, ids[i])
	}
	for r := 1; r <= f.Radius; r++ {
		next := make([]uint32, len(ids))
		for _, i := range heavy {
			env := make([][2]int, 0, len(m.adj[i]))
			for _, nb := range m.adj[i] {
				if m.Atoms[nb.Atom].Element == 1 {
					continue
				}
				env = append(env, [2]int{int(m.Bonds[nb.Bond].Order), int(ids[nb.Atom])})
			}
			slices.SortFunc(env, func(x, y [2]int) int {
				if x[0] != y[0] {
					return x[0] - y[0]
				}
				return x[1] - y[1]
			})
			vals := []int{r, int(ids[i])}
			for _, e := range env {
				vals = append(vals, e[0], e[1])
			}
			next[i] = hashInts(vals...)
			out = append(out, next[i])
		}
		ids = next
	}
	return out
}

func hashInts(vals ...int) uint32 {
	h := fnv.New32a()
	var buf [8]byte
	for _, v := range vals {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	return h.Sum32()
}
