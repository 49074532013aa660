package gcn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCheckpointRoundTrip(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, SaveCheckpoint(m, path))

	params, err := LoadCheckpoint(path)
	require.NoError(t, err)
	require.Len(t, params, 12)
	for name, tensor := range m.NamedParameters() {
		loaded, ok := params[name]
		require.True(t, ok, "missing %s", name)
		assert.True(t, mat.EqualApprox(tensor.Data, loaded, 1e-12), "parameter %s", name)
	}
}

func TestLoadCheckpointErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing.ckpt"))
		assert.Error(t, err)
	})
}

func TestLoadPartial(t *testing.T) {
	t.Run("all matching names transferred", func(t *testing.T) {
		src, err := New(smallConfig())
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "src.ckpt")
		require.NoError(t, SaveCheckpoint(src, path))
		params, err := LoadCheckpoint(path)
		require.NoError(t, err)

		dst, err := New(smallConfig())
		require.NoError(t, err)
		transferred, err := dst.LoadPartial(params)
		require.NoError(t, err)
		assert.Len(t, transferred, 12)
		assert.True(t, mat.EqualApprox(src.Conv[0].Weight.Data, dst.Conv[0].Weight.Data, 1e-12))
	})

	t.Run("absent names keep fresh initialization", func(t *testing.T) {
		src, err := New(smallConfig())
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "src.ckpt")
		require.NoError(t, SaveCheckpoint(src, path))
		params, err := LoadCheckpoint(path)
		require.NoError(t, err)
		delete(params, "head1.weight")
		delete(params, "head1.bias")
		delete(params, "head2.weight")
		delete(params, "head2.bias")

		dst, err := New(smallConfig())
		require.NoError(t, err)
		fresh := mat.DenseCopyOf(dst.Head1.Weight.Data)

		transferred, err := dst.LoadPartial(params)
		require.NoError(t, err)
		assert.Len(t, transferred, 8)
		assert.NotContains(t, transferred, "head1.weight")
		assert.True(t, mat.EqualApprox(fresh, dst.Head1.Weight.Data, 1e-12))
		assert.True(t, mat.EqualApprox(src.Embedding.Weight.Data, dst.Embedding.Weight.Data, 1e-12))
	})

	t.Run("shape mismatch is an error", func(t *testing.T) {
		dst, err := New(smallConfig())
		require.NoError(t, err)
		params := map[string]*mat.Dense{
			"embedding.weight": mat.NewDense(2, 2, nil),
		}
		_, err = dst.LoadPartial(params)
		assert.Error(t, err)
	})
}
