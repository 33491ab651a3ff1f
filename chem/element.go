package chem

import "strings"

const elementList = "H He Li Be B C N O F Ne Na Mg Al Si P S Cl Ar K Ca Sc Ti V Cr Mn Fe Co Ni Cu Zn " +
	"Ga Ge As Se Br Kr Rb Sr Y Zr Nb Mo Tc Ru Rh Pd Ag Cd In Sn Sb Te I Xe Cs Ba La Ce Pr Nd Pm Sm " +
	"Eu Gd Tb Dy Ho Er Tm Yb Lu Hf Ta W Re Os Ir Pt Au Hg Tl Pb Bi Po At Rn Fr Ra Ac Th Pa U Np Pu " +
	"Am Cm Bk Cf Es Fm Md No Lr Rf Db Sg Bh Hs Mt Ds Rg Cn Nh Fl Mc Lv Ts Og"

var (
	elementSymbols []string // index = atomic number
	atomicNumbers  = map[string]int{}
)

// defaultValences lists the allowed valences of organic subset elements.
var defaultValences = map[int][]int{
	5:  {3},       // B
	6:  {4},       // C
	7:  {3, 5},    // N
	8:  {2},       // O
	9:  {1},       // F
	15: {3, 5},    // P
	16: {2, 4, 6}, // S
	17: {1},       // Cl
	35: {1},       // Br
	53: {1},       // I
}

// aromaticSymbols are the lowercase symbols accepted for aromatic atoms.
// The first group is valid outside brackets.
var (
	organicAromatic = map[string]int{"b": 5, "c": 6, "n": 7, "o": 8, "p": 15, "s": 16}
	bracketAromatic = map[string]int{"b": 5, "c": 6, "n": 7, "o": 8, "p": 15, "s": 16, "se": 34, "as": 33, "te": 52}
)

func init() {
	elementSymbols = append([]string{"*"}, strings.Fields(elementList)...)
	for z, sym := range elementSymbols {
		atomicNumbers[sym] = z
	}
}

// ElementSymbol returns the symbol for an atomic number, "*" for 0.
func ElementSymbol(z int) string {
	if z < 0 || z >= len(elementSymbols) {
		return "*"
	}
	return elementSymbols[z]
}

// AtomicNumber returns the atomic number for an element symbol.
func AtomicNumber(symbol string) (int, bool) {
	z, ok := atomicNumbers[symbol]
	return z, ok
}

func isOrganicSubset(z int) bool {
	_, ok := defaultValences[z]
	return ok
}
