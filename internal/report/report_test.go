package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t.Run("perfect predictions", func(t *testing.T) {
		s, err := Summarize([]float64{1, 2, 3}, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Zero(t, s.MSE)
		assert.Zero(t, s.RMSE)
		assert.InDelta(t, 1.0, s.Pearson, 1e-12)
	})

	t.Run("constant offset", func(t *testing.T) {
		s, err := Summarize([]float64{2, 3, 4}, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, s.MSE, 1e-12)
		assert.InDelta(t, 1.0, s.RMSE, 1e-12)
		assert.InDelta(t, 1.0, s.Pearson, 1e-12)
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := Summarize([]float64{1}, []float64{1, 2})
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := Summarize(nil, nil)
		assert.Error(t, err)
	})
}

func TestWriteLossCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "loss.png")
	require.NoError(t, WriteLossCurve(path, []float64{10, 8, 6, 5, 4.5}))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, WriteLossCurve(filepath.Join(t.TempDir(), "empty.png"), nil))
}

func TestWriteParity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "parity.png")
	predicted := []float64{-5.0, -1.2, 0.5, 2.1}
	actual := []float64{-5.1, -0.9, 0.8, 1.8}
	require.NoError(t, WriteParity(path, predicted, actual))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, WriteParity(path, predicted, actual[:2]))
}
