package autodiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const gradTol = 1e-6

func paramTensor(t *testing.T, rows, cols int, data []float64) *Tensor {
	t.Helper()
	tensor, err := NewTensor(mat.NewDense(rows, cols, data), &TensorConfig{RequiresGrad: true})
	require.NoError(t, err)
	return tensor
}

func TestNewTensor(t *testing.T) {
	t.Run("nil data rejected", func(t *testing.T) {
		_, err := NewTensor(nil, nil)
		assert.Error(t, err)
	})

	t.Run("grad allocated only when required", func(t *testing.T) {
		a, err := NewZerosTensor(2, 3, nil)
		require.NoError(t, err)
		assert.Nil(t, a.Grad)

		b, err := NewZerosTensor(2, 3, &TensorConfig{RequiresGrad: true})
		require.NoError(t, err)
		require.NotNil(t, b.Grad)
		rows, cols := b.Grad.Dims()
		assert.Equal(t, 2, rows)
		assert.Equal(t, 3, cols)
	})

	t.Run("invalid dimensions rejected", func(t *testing.T) {
		_, err := NewZerosTensor(0, 3, nil)
		assert.Error(t, err)
		_, err = NewRandomTensor(2, -1, nil)
		assert.Error(t, err)
	})
}

func TestBackwardValidation(t *testing.T) {
	t.Run("non-scalar tensor", func(t *testing.T) {
		a := paramTensor(t, 2, 2, []float64{1, 2, 3, 4})
		assert.Error(t, a.Backward())
	})

	t.Run("no gradient tracking", func(t *testing.T) {
		a, err := NewZerosTensor(1, 1, nil)
		require.NoError(t, err)
		assert.Error(t, a.Backward())
	})
}

// finiteDiff perturbs each element of x and compares the analytic gradient
// from Backward against the central difference of the scalar loss fn.
func finiteDiff(t *testing.T, x *Tensor, fn func() *Tensor) {
	t.Helper()
	loss := fn()
	require.NoError(t, loss.Backward())
	analytic := mat.DenseCopyOf(x.Grad)

	const h = 1e-6
	rows, cols := x.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			orig := x.Data.At(i, j)
			x.Data.Set(i, j, orig+h)
			up := fn().Value()
			x.Data.Set(i, j, orig-h)
			down := fn().Value()
			x.Data.Set(i, j, orig)
			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, analytic.At(i, j), 1e-4, "element (%d,%d)", i, j)
		}
	}
}

func TestMatMulGradient(t *testing.T) {
	a := paramTensor(t, 2, 3, []float64{0.5, -1.2, 0.3, 2.0, 0.1, -0.7})
	b := paramTensor(t, 3, 2, []float64{1.0, 0.4, -0.5, 0.9, 0.2, -1.1})
	target, err := NewTensor(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), nil)
	require.NoError(t, err)

	fn := func() *Tensor {
		a.ZeroGrad()
		b.ZeroGrad()
		prod, err := MatMul(a, b)
		require.NoError(t, err)
		loss, err := MSELoss(prod, target)
		require.NoError(t, err)
		return loss
	}
	finiteDiff(t, a, fn)
	finiteDiff(t, b, fn)
}

func TestMatMulShapeMismatch(t *testing.T) {
	a := paramTensor(t, 2, 3, nil)
	b := paramTensor(t, 2, 3, nil)
	_, err := MatMul(a, b)
	assert.Error(t, err)
}

func TestAddBiasGradient(t *testing.T) {
	x := paramTensor(t, 3, 2, []float64{0.1, -0.2, 0.3, 0.4, -0.5, 0.6})
	bias := paramTensor(t, 1, 2, []float64{0.7, -0.3})
	target, err := NewTensor(mat.NewDense(3, 2, nil), nil)
	require.NoError(t, err)

	fn := func() *Tensor {
		x.ZeroGrad()
		bias.ZeroGrad()
		y, err := AddBias(x, bias)
		require.NoError(t, err)
		loss, err := MSELoss(y, target)
		require.NoError(t, err)
		return loss
	}
	finiteDiff(t, x, fn)
	finiteDiff(t, bias, fn)
}

func TestActivationGradients(t *testing.T) {
	target, err := NewTensor(mat.NewDense(2, 2, nil), nil)
	require.NoError(t, err)

	t.Run("relu", func(t *testing.T) {
		x := paramTensor(t, 2, 2, []float64{0.8, -0.4, 1.5, -2.0})
		finiteDiff(t, x, func() *Tensor {
			x.ZeroGrad()
			y, err := ReLU(x)
			require.NoError(t, err)
			loss, err := MSELoss(y, target)
			require.NoError(t, err)
			return loss
		})
	})

	t.Run("sigmoid", func(t *testing.T) {
		x := paramTensor(t, 2, 2, []float64{0.8, -0.4, 1.5, -2.0})
		finiteDiff(t, x, func() *Tensor {
			x.ZeroGrad()
			y, err := Sigmoid(x)
			require.NoError(t, err)
			loss, err := MSELoss(y, target)
			require.NoError(t, err)
			return loss
		})
	})
}

func TestMeanRows(t *testing.T) {
	x := paramTensor(t, 4, 2, []float64{1, 2, 3, 4, 5, 6, 0, 0})
	mean, err := MeanRows(x)
	require.NoError(t, err)
	rows, cols := mean.Dims()
	require.Equal(t, 1, rows)
	require.Equal(t, 2, cols)
	assert.InDelta(t, 2.25, mean.Data.At(0, 0), gradTol)
	assert.InDelta(t, 3.0, mean.Data.At(0, 1), gradTol)

	target, err := NewTensor(mat.NewDense(1, 2, nil), nil)
	require.NoError(t, err)
	finiteDiff(t, x, func() *Tensor {
		x.ZeroGrad()
		m, err := MeanRows(x)
		require.NoError(t, err)
		loss, err := MSELoss(m, target)
		require.NoError(t, err)
		return loss
	})
}

func TestMSELoss(t *testing.T) {
	t.Run("value", func(t *testing.T) {
		pred := paramTensor(t, 1, 1, []float64{2.0})
		target, err := NewTensor(mat.NewDense(1, 1, []float64{0.5}), nil)
		require.NoError(t, err)
		loss, err := MSELoss(pred, target)
		require.NoError(t, err)
		assert.InDelta(t, 2.25, loss.Value(), gradTol)
	})

	t.Run("gradient flows into predictions only", func(t *testing.T) {
		pred := paramTensor(t, 1, 1, []float64{2.0})
		target := paramTensor(t, 1, 1, []float64{0.5})
		loss, err := MSELoss(pred, target)
		require.NoError(t, err)
		require.NoError(t, loss.Backward())
		assert.InDelta(t, 3.0, pred.Grad.At(0, 0), gradTol)
		assert.InDelta(t, 0.0, target.Grad.At(0, 0), gradTol)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		pred := paramTensor(t, 1, 2, nil)
		target := paramTensor(t, 2, 1, nil)
		_, err := MSELoss(pred, target)
		assert.Error(t, err)
	})
}

func TestFrozenInputsAreSkipped(t *testing.T) {
	frozen, err := NewTensor(mat.NewDense(1, 1, []float64{2.0}), nil)
	require.NoError(t, err)
	live := paramTensor(t, 1, 1, []float64{3.0})

	prod, err := MatMul(frozen, live)
	require.NoError(t, err)
	loss, err := ScalarMultiply(prod, 0.5)
	require.NoError(t, err)
	require.NoError(t, loss.Backward())

	assert.Nil(t, frozen.Grad)
	assert.InDelta(t, 1.0, live.Grad.At(0, 0), gradTol)
}
