package chem

import (
	"fmt"
	"strings"
)

// organicSubset are the elements that may appear outside brackets. Anything
// else must be written as a bracket atom.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

// aromaticSubset are the lowercase aromatic forms accepted outside brackets.
var aromaticSubset = map[string]bool{
	"b": true, "c": true, "n": true, "o": true, "p": true, "s": true,
}

const (
	orderNone     = 0
	orderAromatic = -1
)

// ringRef remembers the first endpoint of a ring-closure digit along with
// any bond order written next to it.
type ringRef struct {
	atom  int
	order int
}

type smilesParser struct {
	input string
	pos   int
	mol   *Molecule

	prev    int
	stack   []int
	pending int
	rings   map[int]ringRef
}

// ParseSMILES parses a SMILES string into a Molecule. It covers the organic
// subset, aromatic lowercase forms, branches, ring closures (including %nn),
// bracket atoms with isotope/charge/hydrogen counts, and dot-separated
// fragments. Stereo markers are accepted and ignored.
func ParseSMILES(s string) (*Molecule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty SMILES string")
	}
	p := &smilesParser{
		input:   s,
		mol:     &Molecule{},
		prev:    -1,
		pending: orderNone,
		rings:   make(map[int]ringRef),
	}
	if err := p.run(); err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	if err := p.mol.sanitize(); err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return p.mol, nil
}

func (p *smilesParser) run() error {
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return fmt.Errorf("branch open at position %d without a preceding atom", p.pos)
			}
			p.stack = append(p.stack, p.prev)
			p.pos++
		case c == ')':
			if len(p.stack) == 0 {
				return fmt.Errorf("unmatched ')' at position %d", p.pos)
			}
			p.prev = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			p.pos++
		case c == '.':
			if p.pending != orderNone {
				return fmt.Errorf("bond symbol before '.' at position %d", p.pos)
			}
			p.prev = -1
			p.pos++
		case c == '-' || c == '/' || c == '\\':
			p.pending = 1
			p.pos++
		case c == '=':
			p.pending = 2
			p.pos++
		case c == '#':
			p.pending = 3
			p.pos++
		case c == ':':
			p.pending = orderAromatic
			p.pos++
		case c >= '0' && c <= '9':
			if err := p.ringClosure(int(c - '0')); err != nil {
				return err
			}
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.input) || !isDigit(p.input[p.pos+1]) || !isDigit(p.input[p.pos+2]) {
				return fmt.Errorf("'%%' at position %d needs two digits", p.pos)
			}
			n := int(p.input[p.pos+1]-'0')*10 + int(p.input[p.pos+2]-'0')
			if err := p.ringClosure(n); err != nil {
				return err
			}
			p.pos += 3
		case c == '[':
			atom, err := p.parseBracketAtom()
			if err != nil {
				return err
			}
			if err := p.attach(atom); err != nil {
				return err
			}
		default:
			atom, err := p.parseOrganicAtom()
			if err != nil {
				return err
			}
			if err := p.attach(atom); err != nil {
				return err
			}
		}
	}
	if len(p.stack) != 0 {
		return fmt.Errorf("unclosed branch")
	}
	if p.pending != orderNone {
		return fmt.Errorf("dangling bond symbol at end of input")
	}
	if len(p.rings) != 0 {
		return fmt.Errorf("unclosed ring bond")
	}
	if len(p.mol.Atoms) == 0 {
		return fmt.Errorf("no atoms")
	}
	return nil
}

// parseOrganicAtom reads a bare organic-subset atom, preferring the
// two-letter symbols Cl and Br over C and B.
func (p *smilesParser) parseOrganicAtom() (Atom, error) {
	rest := p.input[p.pos:]
	for _, sym := range []string{"Cl", "Br"} {
		if strings.HasPrefix(rest, sym) {
			p.pos += 2
			return Atom{Symbol: sym}, nil
		}
	}
	c := string(rest[0])
	if organicSubset[c] {
		p.pos++
		return Atom{Symbol: c}, nil
	}
	if aromaticSubset[c] {
		p.pos++
		return Atom{Symbol: strings.ToUpper(c), Aromatic: true}, nil
	}
	return Atom{}, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
}

// parseBracketAtom reads an atom of the form
// [isotope? symbol stereo? Hcount? charge? class?].
func (p *smilesParser) parseBracketAtom() (Atom, error) {
	start := p.pos
	p.pos++ // consume '['
	atom := Atom{bracket: true}

	atom.Isotope = p.readDigits()

	sym, aromatic, err := p.readBracketSymbol()
	if err != nil {
		return Atom{}, fmt.Errorf("bracket atom at position %d: %w", start, err)
	}
	atom.Symbol = sym
	atom.Aromatic = aromatic

	// Stereo markers are parsed and discarded.
	for p.pos < len(p.input) && p.input[p.pos] == '@' {
		p.pos++
	}

	if p.pos < len(p.input) && p.input[p.pos] == 'H' {
		p.pos++
		atom.explicitH = 1
		if n := p.readDigits(); n > 0 {
			atom.explicitH = n
		}
	}

	for p.pos < len(p.input) && (p.input[p.pos] == '+' || p.input[p.pos] == '-') {
		sign := 1
		if p.input[p.pos] == '-' {
			sign = -1
		}
		p.pos++
		if n := p.readDigits(); n > 0 {
			atom.Charge += sign * n
		} else {
			atom.Charge += sign
		}
	}

	if p.pos < len(p.input) && p.input[p.pos] == ':' {
		p.pos++
		p.readDigits() // atom class, ignored
	}

	if p.pos >= len(p.input) || p.input[p.pos] != ']' {
		return Atom{}, fmt.Errorf("unclosed bracket atom at position %d", start)
	}
	p.pos++
	return atom, nil
}

func (p *smilesParser) readBracketSymbol() (string, bool, error) {
	if p.pos >= len(p.input) {
		return "", false, fmt.Errorf("missing element symbol")
	}
	c := p.input[p.pos]
	switch {
	case c >= 'A' && c <= 'Z':
		sym := string(c)
		p.pos++
		if p.pos < len(p.input) && p.input[p.pos] >= 'a' && p.input[p.pos] <= 'z' {
			// Two-letter element, e.g. Na, Mg, Cl, Se.
			sym += string(p.input[p.pos])
			p.pos++
		}
		return sym, false, nil
	case c >= 'a' && c <= 'z':
		if strings.HasPrefix(p.input[p.pos:], "se") || strings.HasPrefix(p.input[p.pos:], "as") {
			sym := strings.ToUpper(p.input[p.pos:p.pos+1]) + p.input[p.pos+1:p.pos+2]
			p.pos += 2
			return sym, true, nil
		}
		if aromaticSubset[string(c)] {
			p.pos++
			return strings.ToUpper(string(c)), true, nil
		}
		return "", false, fmt.Errorf("unknown aromatic symbol %q", string(c))
	default:
		return "", false, fmt.Errorf("invalid element symbol %q", string(c))
	}
}

func (p *smilesParser) readDigits() int {
	n := 0
	seen := false
	for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
		n = n*10 + int(p.input[p.pos]-'0')
		p.pos++
		seen = true
	}
	if !seen {
		return 0
	}
	return n
}

// attach appends the atom and bonds it to the previous atom in the chain,
// consuming any pending bond symbol.
func (p *smilesParser) attach(atom Atom) error {
	p.mol.Atoms = append(p.mol.Atoms, atom)
	idx := len(p.mol.Atoms) - 1
	if p.prev >= 0 {
		order, aromatic := p.resolveBond(p.prev, idx)
		if err := p.mol.addBond(p.prev, idx, order, aromatic); err != nil {
			return err
		}
	} else if p.pending != orderNone {
		return fmt.Errorf("bond symbol with no preceding atom")
	}
	p.pending = orderNone
	p.prev = idx
	return nil
}

// resolveBond decides the order of the bond into the atom just attached:
// an explicit symbol wins, otherwise two aromatic atoms bond aromatically.
func (p *smilesParser) resolveBond(a, b int) (int, bool) {
	switch p.pending {
	case orderAromatic:
		return 1, true
	case orderNone:
		if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
			return 1, true
		}
		return 1, false
	default:
		return p.pending, false
	}
}

func (p *smilesParser) ringClosure(n int) error {
	if p.prev < 0 {
		return fmt.Errorf("ring closure digit %d with no preceding atom", n)
	}
	ref, open := p.rings[n]
	if !open {
		p.rings[n] = ringRef{atom: p.prev, order: p.pending}
		p.pending = orderNone
		return nil
	}
	delete(p.rings, n)

	order := ref.order
	if p.pending != orderNone {
		if order != orderNone && order != p.pending {
			return fmt.Errorf("conflicting bond orders on ring closure %d", n)
		}
		order = p.pending
	}
	p.pending = orderNone

	aromatic := false
	switch order {
	case orderAromatic:
		order, aromatic = 1, true
	case orderNone:
		order = 1
		aromatic = p.mol.Atoms[ref.atom].Aromatic && p.mol.Atoms[p.prev].Aromatic
	}
	return p.mol.addBond(ref.atom, p.prev, order, aromatic)
}

// sanitize rejects molecules whose non-bracket atoms exceed the largest
// allowed valence for their element, mirroring toolkit-style rejection of
// chemically impossible structures.
func (m *Molecule) sanitize() error {
	for i, a := range m.Atoms {
		if a.bracket {
			continue
		}
		valences, ok := defaultValences[a.Symbol]
		if !ok {
			return fmt.Errorf("atom %d: element %q not in organic subset", i, a.Symbol)
		}
		need := m.bondOrderSum(i) + m.piContribution(i)
		if need > valences[len(valences)-1] {
			return fmt.Errorf("atom %d (%s): valence %d exceeds maximum %d",
				i, a.Symbol, need, valences[len(valences)-1])
		}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
