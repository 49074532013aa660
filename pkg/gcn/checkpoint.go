package gcn

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// checkpointVersion is incremented when the on-disk format changes.
const checkpointVersion = 1

// checkpointParam is the on-disk form of one parameter matrix.
type checkpointParam struct {
	Rows, Cols int
	Data       []float64
}

// checkpointFile is the gob-encoded checkpoint layout.
type checkpointFile struct {
	Version int
	Params  map[string]checkpointParam
}

// SaveCheckpoint writes all model parameters to path as a gob checkpoint.
// The write is atomic: a temp file in the same directory is renamed over
// the target.
func SaveCheckpoint(m *Model, path string) error {
	ck := checkpointFile{
		Version: checkpointVersion,
		Params:  make(map[string]checkpointParam),
	}
	for name, t := range m.NamedParameters() {
		rows, cols := t.Dims()
		data := make([]float64, rows*cols)
		copy(data, t.Data.RawMatrix().Data)
		ck.Params[name] = checkpointParam{Rows: rows, Cols: cols, Data: data}
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := gob.NewEncoder(tmp).Encode(&ck); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp checkpoint to target: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a gob checkpoint into parameter matrices keyed by
// name.
func LoadCheckpoint(path string) (map[string]*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer f.Close()

	var ck checkpointFile
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if ck.Version != checkpointVersion {
		return nil, fmt.Errorf("checkpoint version mismatch: file=%d expected=%d", ck.Version, checkpointVersion)
	}

	params := make(map[string]*mat.Dense, len(ck.Params))
	for name, p := range ck.Params {
		if p.Rows <= 0 || p.Cols <= 0 || len(p.Data) != p.Rows*p.Cols {
			return nil, fmt.Errorf("checkpoint parameter %s has inconsistent shape %dx%d with %d values",
				name, p.Rows, p.Cols, len(p.Data))
		}
		params[name] = mat.NewDense(p.Rows, p.Cols, p.Data)
	}
	return params, nil
}

// LoadPartial copies every checkpoint parameter whose name matches a model
// parameter; names absent from the checkpoint keep their fresh
// initialization. A name match with a shape mismatch is an error. Returns
// the sorted names that were transferred.
func (m *Model) LoadPartial(params map[string]*mat.Dense) ([]string, error) {
	model := m.NamedParameters()
	var transferred []string
	for name, t := range model {
		src, ok := params[name]
		if !ok {
			continue
		}
		rows, cols := t.Dims()
		sr, sc := src.Dims()
		if sr != rows || sc != cols {
			return nil, fmt.Errorf("parameter %s: checkpoint shape %dx%d, model shape %dx%d", name, sr, sc, rows, cols)
		}
		t.Data.Copy(src)
		transferred = append(transferred, name)
	}
	sort.Strings(transferred)
	return transferred, nil
}
