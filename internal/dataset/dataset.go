// Package dataset loads the FreeSolv CSV and prepares featurized samples
// for the training loop.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/iwhite98/ntelligent-Chemistry/internal/chem"
	"github.com/iwhite98/ntelligent-Chemistry/internal/featurize"
)

// Record is one molecule with its measured free energy of solvation.
type Record struct {
	SMILES     string
	FreeEnergy float64
}

// Load reads the FreeSolv CSV: the SMILES string is the second column, the
// free energy the last. The header row is skipped. Molecules that fail to
// parse or exceed maxAtoms are silently dropped, matching the pretraining
// data pipeline.
func Load(path string, maxAtoms int) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	var records []Record
	for _, row := range rows[1:] {
		if len(row) < 2 {
			continue
		}
		smiles := row[1]
		freeE, err := strconv.ParseFloat(row[len(row)-1], 64)
		if err != nil {
			continue
		}
		mol, err := chem.ParseSMILES(smiles)
		if err != nil || mol.NumAtoms() > maxAtoms {
			continue
		}
		records = append(records, Record{SMILES: smiles, FreeEnergy: freeE})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s contains no usable molecules", path)
	}
	return records, nil
}

// Sample is one featurized molecule with its regression target.
type Sample struct {
	Graph  *featurize.Graph
	Target float64
}

// Dataset is an in-memory, immutable list of featurized samples.
type Dataset struct {
	samples []Sample
}

// New featurizes every record into a Dataset. Records come from Load, so a
// featurization failure here is a real error, not a skip.
func New(records []Record, maxAtoms int) (*Dataset, error) {
	samples := make([]Sample, 0, len(records))
	for _, rec := range records {
		g, err := featurize.SMILES(rec.SMILES, maxAtoms)
		if err != nil {
			return nil, fmt.Errorf("featurize %q: %w", rec.SMILES, err)
		}
		samples = append(samples, Sample{Graph: g, Target: rec.FreeEnergy})
	}
	return &Dataset{samples: samples}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.samples) }

// Sample returns sample i.
func (d *Dataset) Sample(i int) Sample { return d.samples[i] }

// Split cuts records into ordered train and test portions; the first
// trainFrac of the rows become the training set. File order is preserved.
func Split(records []Record, trainFrac float64) (train, test []Record) {
	n := int(float64(len(records)) * trainFrac)
	if n < 0 {
		n = 0
	}
	if n > len(records) {
		n = len(records)
	}
	return records[:n], records[n:]
}

// Batches slices the dataset into consecutive batches of at most batchSize
// samples, in order.
func (d *Dataset) Batches(batchSize int) [][]Sample {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]Sample
	for i := 0; i < len(d.samples); i += batchSize {
		end := i + batchSize
		if end > len(d.samples) {
			end = len(d.samples)
		}
		batches = append(batches, d.samples[i:end])
	}
	return batches
}
