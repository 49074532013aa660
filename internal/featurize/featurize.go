// Package featurize turns parsed molecules into the fixed-size dense inputs
// the graph-convolution model consumes: a padded per-atom feature matrix and
// a padded, self-looped adjacency matrix.
package featurize

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/iwhite98/ntelligent-Chemistry/internal/chem"
)

// NumAtomFeatures is the width of the per-atom feature vector: element
// one-of-k over {C,N,O,F,else}, formal charge over {-1,0,+1,else}, hydrogen
// count over {0..4,else}, and an aromaticity flag.
const NumAtomFeatures = 16

var (
	elementBuckets = []string{"C", "N", "O", "F"}
	chargeBuckets  = []int{-1, 0, 1}
	hCountBuckets  = []int{0, 1, 2, 3, 4}
)

// AtomFeatures encodes atom i of mol into its 16-dimensional feature vector.
// Values outside a bucket list land in that list's trailing catch-all slot.
func AtomFeatures(mol *chem.Molecule, i int) []float64 {
	a := mol.Atoms[i]
	f := make([]float64, 0, NumAtomFeatures)
	f = append(f, oneOfKString(a.Symbol, elementBuckets)...)
	f = append(f, oneOfKInt(a.Charge, chargeBuckets)...)
	f = append(f, oneOfKInt(mol.TotalHydrogens(i), hCountBuckets)...)
	if a.Aromatic {
		f = append(f, 1)
	} else {
		f = append(f, 0)
	}
	return f
}

func oneOfKString(x string, allowed []string) []float64 {
	v := make([]float64, len(allowed)+1)
	for i, s := range allowed {
		if x == s {
			v[i] = 1
			return v
		}
	}
	v[len(allowed)] = 1
	return v
}

func oneOfKInt(x int, allowed []int) []float64 {
	v := make([]float64, len(allowed)+1)
	for i, n := range allowed {
		if x == n {
			v[i] = 1
			return v
		}
	}
	v[len(allowed)] = 1
	return v
}

// Graph is the padded tensor pair for one molecule. Rows and columns past
// NumAtoms are all zero; the adjacency diagonal is 1 only for real atoms.
type Graph struct {
	Features  *mat.Dense // maxAtoms x NumAtomFeatures
	Adjacency *mat.Dense // maxAtoms x maxAtoms, bonds plus self loops
	NumAtoms  int
}

// Molecule featurizes mol into a Graph padded to maxAtoms, rejecting
// molecules with more atoms than fit.
func Molecule(mol *chem.Molecule, maxAtoms int) (*Graph, error) {
	n := mol.NumAtoms()
	if n == 0 {
		return nil, fmt.Errorf("molecule has no atoms")
	}
	if n > maxAtoms {
		return nil, fmt.Errorf("molecule has %d atoms, limit is %d", n, maxAtoms)
	}

	features := mat.NewDense(maxAtoms, NumAtomFeatures, nil)
	for i := 0; i < n; i++ {
		features.SetRow(i, AtomFeatures(mol, i))
	}

	adjacency := mat.NewDense(maxAtoms, maxAtoms, nil)
	for i, row := range mol.AdjacencyMatrix() {
		for j, v := range row {
			adjacency.Set(i, j, v)
		}
		adjacency.Set(i, i, 1)
	}

	return &Graph{Features: features, Adjacency: adjacency, NumAtoms: n}, nil
}

// SMILES parses and featurizes a SMILES string in one step.
func SMILES(smiles string, maxAtoms int) (*Graph, error) {
	mol, err := chem.ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return Molecule(mol, maxAtoms)
}
