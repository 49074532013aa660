package train

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/iwhite98/ntelligent-Chemistry/pkg/autodiff"
)

func gradParam(t *testing.T, data, grad []float64) *autodiff.Tensor {
	t.Helper()
	p, err := autodiff.NewTensor(mat.NewDense(1, len(data), data), &autodiff.TensorConfig{RequiresGrad: true})
	require.NoError(t, err)
	p.Grad.SetRow(0, grad)
	return p
}

func TestAdamOptimizer(t *testing.T) {
	t.Run("first step matches the closed form", func(t *testing.T) {
		p := gradParam(t, []float64{1.0}, []float64{0.5})
		opt := NewAdamOptimizer(0.01)
		opt.Step(map[string]*autodiff.Tensor{"p": p})
		// With bias correction the first update is lr * g / (|g| + eps).
		assert.InDelta(t, 1.0-0.01, p.Data.At(0, 0), 1e-6)
	})

	t.Run("frozen parameters untouched", func(t *testing.T) {
		frozen, err := autodiff.NewTensor(mat.NewDense(1, 1, []float64{2.0}), nil)
		require.NoError(t, err)
		live := gradParam(t, []float64{1.0}, []float64{1.0})

		opt := NewAdamOptimizer(0.01)
		opt.Step(map[string]*autodiff.Tensor{"frozen": frozen, "live": live})

		assert.Equal(t, 2.0, frozen.Data.At(0, 0))
		assert.NotEqual(t, 1.0, live.Data.At(0, 0))
	})

	t.Run("descends a quadratic", func(t *testing.T) {
		p := gradParam(t, []float64{5.0}, []float64{0})
		opt := NewAdamOptimizer(0.1)
		params := map[string]*autodiff.Tensor{"p": p}
		for i := 0; i < 200; i++ {
			p.Grad.Set(0, 0, 2*p.Data.At(0, 0))
			opt.Step(params)
		}
		assert.Less(t, math.Abs(p.Data.At(0, 0)), 1.0)
	})
}

func TestClipGradients(t *testing.T) {
	t.Run("norm above the cap is rescaled", func(t *testing.T) {
		a := gradParam(t, []float64{0, 0}, []float64{3, 0})
		b := gradParam(t, []float64{0, 0}, []float64{0, 4})
		params := map[string]*autodiff.Tensor{"a": a, "b": b}

		ClipGradients(params, 1.0)
		total := math.Hypot(a.Grad.At(0, 0), b.Grad.At(0, 1))
		assert.InDelta(t, 1.0, total, 1e-5)
		// Direction preserved.
		assert.InDelta(t, 3.0/5.0, a.Grad.At(0, 0), 1e-5)
		assert.InDelta(t, 4.0/5.0, b.Grad.At(0, 1), 1e-5)
	})

	t.Run("norm below the cap is untouched", func(t *testing.T) {
		a := gradParam(t, []float64{0}, []float64{0.3})
		ClipGradients(map[string]*autodiff.Tensor{"a": a}, 1.0)
		assert.Equal(t, 0.3, a.Grad.At(0, 0))
	})

	t.Run("frozen parameters are ignored", func(t *testing.T) {
		frozen, err := autodiff.NewTensor(mat.NewDense(1, 1, []float64{1.0}), nil)
		require.NoError(t, err)
		live := gradParam(t, []float64{0}, []float64{10})
		ClipGradients(map[string]*autodiff.Tensor{"frozen": frozen, "live": live}, 1.0)
		assert.InDelta(t, 1.0, live.Grad.At(0, 0), 1e-5)
	})
}
