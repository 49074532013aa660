// Package chem provides a small molecule model and a SMILES parser covering
// the organic subset, bracket atoms, branches, ring closures and aromatic
// forms. It exists because the featurization pipeline needs atom-level
// properties (element, formal charge, hydrogen count, aromaticity) and the
// bond graph, nothing more.
package chem

import "fmt"

// Atom is a single heavy atom (or an explicit [H]) in a parsed molecule.
type Atom struct {
	Symbol    string
	Aromatic  bool
	Charge    int
	Isotope   int
	explicitH int
	bracket   bool
}

// Bond connects two atoms by index. Aromatic bonds carry Order 1 with the
// Aromatic flag set.
type Bond struct {
	From     int
	To       int
	Order    int
	Aromatic bool
}

// Molecule is the parsed bond graph of a SMILES string.
type Molecule struct {
	Atoms []Atom
	Bonds []Bond
}

// NumAtoms returns the number of atoms in the molecule.
func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// defaultValences lists the allowed valences for organic-subset elements,
// smallest first. Bracket atoms never consult this table: their hydrogen
// count is whatever the brackets spell out.
var defaultValences = map[string][]int{
	"B":  {3},
	"C":  {4},
	"N":  {3, 5},
	"O":  {2},
	"P":  {3, 5},
	"S":  {2, 4, 6},
	"F":  {1},
	"Cl": {1},
	"Br": {1},
	"I":  {1},
}

// bondOrderSum returns the valence contribution of all bonds at atom i.
// Aromatic bonds count as single bonds; the ring's delocalized pi electron
// is accounted for separately by piContribution.
func (m *Molecule) bondOrderSum(i int) int {
	sum := 0
	for _, b := range m.Bonds {
		if b.From != i && b.To != i {
			continue
		}
		sum += b.Order
	}
	return sum
}

// piContribution returns the valence unit atom i spends on the aromatic
// ring's pi system. Aromatic O and S donate a lone pair instead of a pi
// electron, so only the other aromatic elements pay it. This gives a
// fusion carbon with three ring bonds valence 4 and no hydrogens, while
// furan's oxygen stays at valence 2.
func (m *Molecule) piContribution(i int) int {
	a := m.Atoms[i]
	if !a.Aromatic {
		return 0
	}
	switch a.Symbol {
	case "O", "S", "Se":
		return 0
	}
	return 1
}

// TotalHydrogens returns the hydrogen count of atom i: the bracket-specified
// count for bracket atoms, otherwise the implicit count needed to fill the
// element's lowest compatible valence.
func (m *Molecule) TotalHydrogens(i int) int {
	a := m.Atoms[i]
	if a.bracket {
		return a.explicitH
	}
	valences, ok := defaultValences[a.Symbol]
	if !ok {
		return 0
	}
	need := m.bondOrderSum(i) + m.piContribution(i)
	for _, v := range valences {
		if v >= need {
			return v - need
		}
	}
	return 0
}

// Degree returns the number of bonded neighbors of atom i.
func (m *Molecule) Degree(i int) int {
	n := 0
	for _, b := range m.Bonds {
		if b.From == i || b.To == i {
			n++
		}
	}
	return n
}

// AdjacencyMatrix returns the symmetric 0/1 bond matrix, without self loops.
func (m *Molecule) AdjacencyMatrix() [][]float64 {
	n := m.NumAtoms()
	adj := make([][]float64, n)
	for i := range adj {
		adj[i] = make([]float64, n)
	}
	for _, b := range m.Bonds {
		adj[b.From][b.To] = 1
		adj[b.To][b.From] = 1
	}
	return adj
}

// addBond appends a bond after validating the endpoint indices.
func (m *Molecule) addBond(from, to, order int, aromatic bool) error {
	if from == to {
		return fmt.Errorf("self bond on atom %d", from)
	}
	if from < 0 || from >= len(m.Atoms) || to < 0 || to >= len(m.Atoms) {
		return fmt.Errorf("bond endpoints out of range: %d-%d", from, to)
	}
	m.Bonds = append(m.Bonds, Bond{From: from, To: to, Order: order, Aromatic: aromatic})
	return nil
}
