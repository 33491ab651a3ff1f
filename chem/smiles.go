package chem

import (
	"fmt"
	"strings"
)

// SMILESError reports a syntax or semantic problem in a SMILES string.
type SMILESError struct {
	SMILES string
	Pos    int
	Reason string
}

func (e *SMILESError) Error() string {
	return fmt.Sprintf("chem: invalid SMILES %q at position %d: %s", e.SMILES, e.Pos, e.Reason)
}

type ringOpen struct {
	atom  int
	order BondOrder // 0 when unspecified
	pos   int
}

type smilesParser struct {
	s   string
	pos int
	mol *Mol

	prev     int // atom the next atom bonds to, -1 at start or after '.'
	bond     BondOrder
	bondPos  int
	branches []int
	rings    map[int]ringOpen
	bracket  []bool
}

// ParseSMILES parses a SMILES string into a hydrogen-suppressed graph with
// perceived rings and aromaticity. Stereo descriptors are accepted and discarded.
func ParseSMILES(s string) (*Mol, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, &SMILESError{SMILES: s, Reason: "empty string"}
	}
	p := &smilesParser{s: s, mol: NewMol(), prev: -1, rings: map[int]ringOpen{}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	m := p.mol
	for i := range m.Atoms {
		if !p.bracket[i] {
			m.Atoms[i].HCount = m.implicitHydrogens(i)
		}
	}
	for i, a := range m.Atoms {
		if a.Aromatic && !m.InRing(i) {
			return nil, &SMILESError{SMILES: s, Pos: len(s), Reason: fmt.Sprintf("aromatic atom %d is not in a ring", i)}
		}
	}
	if !kekulizable(m) {
		return nil, &SMILESError{SMILES: s, Pos: len(s), Reason: "aromatic system has no Kekulé structure"}
	}
	perceiveAromaticity(m)
	return m, nil
}

// MustParseSMILES is like ParseSMILES but panics on error. Intended for tests
// and package-level fixtures.
func MustParseSMILES(s string) *Mol {
	m, err := ParseSMILES(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (p *smilesParser) errorf(format string, args ...interface{}) error {
	return &SMILESError{SMILES: p.s, Pos: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *smilesParser) parse() error {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.errorf("branch without preceding atom")
			}
			if p.bond != 0 {
				return p.errorf("bond before branch")
			}
			p.branches = append(p.branches, p.prev)
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.errorf("unbalanced ')'")
			}
			if p.bond != 0 {
				return p.errorf("dangling bond")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case c == '.':
			if p.bond != 0 {
				return p.errorf("dangling bond")
			}
			p.prev = -1
			p.pos++
		case strings.IndexByte("-=#$:/\\", c) >= 0:
			if p.bond != 0 {
				return p.errorf("consecutive bond symbols")
			}
			if p.prev < 0 {
				return p.errorf("bond without preceding atom")
			}
			p.bond = bondFromSymbol(c)
			p.bondPos = p.pos
			p.pos++
		case c == '%' || (c >= '0' && c <= '9'):
			if err := p.parseRing(); err != nil {
				return err
			}
		case c == '[':
			if err := p.parseBracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.parseOrganicAtom(); err != nil {
				return err
			}
		}
	}
	if p.bond != 0 {
		p.pos = p.bondPos
		return p.errorf("dangling bond")
	}
	if len(p.branches) > 0 {
		return p.errorf("unclosed branch")
	}
	for digit, open := range p.rings {
		p.pos = open.pos
		return p.errorf("unclosed ring %d", digit)
	}
	return nil
}

func bondFromSymbol(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case '$':
		return BondQuadruple
	case ':':
		return BondAromatic
	default: // '-', '/', '\'
		return BondSingle
	}
}

func (p *smilesParser) defaultOrder(a, b int) BondOrder {
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func (p *smilesParser) addAtom(a Atom, bracket bool) {
	idx := p.mol.AddAtom(a)
	p.bracket = append(p.bracket, bracket)
	if p.prev >= 0 {
		order := p.bond
		if order == 0 {
			order = p.defaultOrder(p.prev, idx)
		}
		p.mol.AddBond(p.prev, idx, order)
	}
	p.prev = idx
	p.bond = 0
}

func (p *smilesParser) parseRing() error {
	start := p.pos
	var digit int
	if p.s[p.pos] == '%' {
		if p.pos+2 >= len(p.s) || !isDigit(p.s[p.pos+1]) || !isDigit(p.s[p.pos+2]) {
			return p.errorf("'%%' must be followed by two digits")
		}
		digit = int(p.s[p.pos+1]-'0')*10 + int(p.s[p.pos+2]-'0')
		p.pos += 3
	} else {
		digit = int(p.s[p.pos] - '0')
		p.pos++
	}
	if p.prev < 0 {
		p.pos = start
		return p.errorf("ring closure without preceding atom")
	}
	open, ok := p.rings[digit]
	if !ok {
		p.rings[digit] = ringOpen{atom: p.prev, order: p.bond, pos: start}
		p.bond = 0
		return nil
	}
	delete(p.rings, digit)
	if open.atom == p.prev {
		p.pos = start
		return p.errorf("ring closure %d bonds atom to itself", digit)
	}
	if p.mol.BondBetween(open.atom, p.prev) >= 0 {
		p.pos = start
		return p.errorf("ring closure %d duplicates an existing bond", digit)
	}
	order := p.bond
	switch {
	case order == 0:
		order = open.order
	case open.order != 0 && open.order != order:
		p.pos = start
		return p.errorf("conflicting bond orders on ring closure %d", digit)
	}
	if order == 0 {
		order = p.defaultOrder(open.atom, p.prev)
	}
	p.mol.AddBond(open.atom, p.prev, order)
	p.bond = 0
	return nil
}

func (p *smilesParser) parseOrganicAtom() error {
	rest := p.s[p.pos:]
	if c := rest[0]; c == '*' {
		p.pos++
		p.addAtom(Atom{Element: 0}, false)
		return nil
	}
	if strings.HasPrefix(rest, "Cl") || strings.HasPrefix(rest, "Br") {
		z, _ := AtomicNumber(rest[:2])
		p.pos += 2
		p.addAtom(Atom{Element: z}, false)
		return nil
	}
	sym := rest[:1]
	if z, ok := organicAromatic[sym]; ok {
		p.pos++
		p.addAtom(Atom{Element: z, Aromatic: true}, false)
		return nil
	}
	if z, ok := AtomicNumber(sym); ok && isOrganicSubset(z) {
		p.pos++
		p.addAtom(Atom{Element: z}, false)
		return nil
	}
	return p.errorf("unexpected character %q", rest[0])
}

func (p *smilesParser) parseBracketAtom() error {
	p.pos++ // '['
	var a Atom

	a.Isotope = p.readNumber()

	if err := p.readBracketSymbol(&a); err != nil {
		return err
	}
	p.skipChirality()

	if p.peek() == 'H' {
		p.pos++
		a.HCount = 1
		if isDigit(p.peek()) {
			a.HCount = p.readNumber()
		}
	}

	switch c := p.peek(); c {
	case '+', '-':
		sign := 1
		if c == '-' {
			sign = -1
		}
		p.pos++
		switch {
		case isDigit(p.peek()):
			a.Charge = sign * p.readNumber()
		default:
			a.Charge = sign
			for p.peek() == c {
				a.Charge += sign
				p.pos++
			}
		}
	}

	if p.peek() == ':' {
		p.pos++
		if !isDigit(p.peek()) {
			return p.errorf("atom class must be numeric")
		}
		a.Class = p.readNumber()
	}

	if p.peek() != ']' {
		if p.pos >= len(p.s) {
			return p.errorf("unterminated bracket atom")
		}
		return p.errorf("unexpected character %q in bracket atom", p.s[p.pos])
	}
	p.pos++
	p.addAtom(a, true)
	return nil
}

func (p *smilesParser) readBracketSymbol(a *Atom) error {
	rest := p.s[p.pos:]
	if rest == "" {
		return p.errorf("unterminated bracket atom")
	}
	if rest[0] == '*' {
		p.pos++
		return nil
	}
	if len(rest) >= 2 {
		if z, ok := bracketAromatic[rest[:2]]; ok {
			a.Element, a.Aromatic = z, true
			p.pos += 2
			return nil
		}
		if isUpper(rest[0]) && isLower(rest[1]) {
			if z, ok := AtomicNumber(rest[:2]); ok {
				a.Element = z
				p.pos += 2
				return nil
			}
		}
	}
	if z, ok := bracketAromatic[rest[:1]]; ok {
		a.Element, a.Aromatic = z, true
		p.pos++
		return nil
	}
	if z, ok := AtomicNumber(rest[:1]); ok && isUpper(rest[0]) {
		a.Element = z
		p.pos++
		return nil
	}
	return p.errorf("unknown element in bracket atom")
}

// skipChirality consumes @, @@ and the @TH1/@AL2/@SP3/@TB12/@OH30 forms.
func (p *smilesParser) skipChirality() {
	if p.peek() != '@' {
		return
	}
	p.pos++
	if p.peek() == '@' {
		p.pos++
		return
	}
	rest := p.s[p.pos:]
	for _, class := range []string{"TH", "AL", "SP", "TB", "OH"} {
		if strings.HasPrefix(rest, class) {
			p.pos += len(class)
			p.readNumber()
			return
		}
	}
}

func (p *smilesParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *smilesParser) readNumber() int {
	n := 0
	for isDigit(p.peek()) {
		n = n*10 + int(p.s[p.pos]-'0')
		p.pos++
	}
	return n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
