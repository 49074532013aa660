// Package autodiff implements reverse-mode automatic differentiation over
// dense gonum matrices: enough operations for a graph-convolution network
// and nothing more.
package autodiff

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Tensor represents a matrix with gradient tracking.
type Tensor struct {
	Data         *mat.Dense
	Grad         *mat.Dense
	RequiresGrad bool
	Name         string

	backwardFn func()
	children   []*Tensor
}

// TensorConfig holds the options for creating a tensor.
type TensorConfig struct {
	RequiresGrad bool
	Name         string
}

// NewTensor creates a tensor from an existing matrix.
func NewTensor(data *mat.Dense, config *TensorConfig) (*Tensor, error) {
	if data == nil {
		return nil, fmt.Errorf("data matrix cannot be nil")
	}
	if config == nil {
		config = &TensorConfig{}
	}
	t := &Tensor{
		Data:         data,
		RequiresGrad: config.RequiresGrad,
		Name:         config.Name,
	}
	if t.RequiresGrad {
		rows, cols := data.Dims()
		t.Grad = mat.NewDense(rows, cols, nil)
	}
	return t, nil
}

// NewZerosTensor creates a tensor filled with zeros.
func NewZerosTensor(rows, cols int, config *TensorConfig) (*Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: rows=%d, cols=%d", rows, cols)
	}
	return NewTensor(mat.NewDense(rows, cols, nil), config)
}

// NewRandomTensor creates a tensor with small uniform random values, the
// same initialization the pretraining run uses.
func NewRandomTensor(rows, cols int, config *TensorConfig) (*Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: rows=%d, cols=%d", rows, cols)
	}
	u := distuv.Uniform{Min: -0.1, Max: 0.1}
	data := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data.Set(i, j, u.Rand())
		}
	}
	return NewTensor(data, config)
}

// Dims returns the shape of the tensor's data.
func (t *Tensor) Dims() (rows, cols int) { return t.Data.Dims() }

// Value returns the single element of a 1x1 tensor.
func (t *Tensor) Value() float64 { return t.Data.At(0, 0) }

// ZeroGrad zeroes the gradient in place.
func (t *Tensor) ZeroGrad() {
	if t.Grad != nil {
		t.Grad.Zero()
	}
}

// Backward runs the reverse pass from t, which must be a 1x1 loss tensor,
// accumulating gradients into every reachable tensor that requires them.
func (t *Tensor) Backward() error {
	rows, cols := t.Dims()
	if rows != 1 || cols != 1 {
		return fmt.Errorf("backward must start from a scalar tensor, got %dx%d", rows, cols)
	}
	if t.Grad == nil {
		return fmt.Errorf("backward from a tensor that does not require gradients")
	}
	t.Grad.Set(0, 0, 1)

	visited := make(map[*Tensor]bool)
	var topo []*Tensor
	var build func(node *Tensor)
	build = func(node *Tensor) {
		if node == nil || visited[node] {
			return
		}
		visited[node] = true
		for _, child := range node.children {
			build(child)
		}
		topo = append(topo, node)
	}
	build(t)

	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].backwardFn != nil {
			topo[i].backwardFn()
		}
	}
	return nil
}

// result builds an intermediate tensor that requires a gradient whenever any
// of its inputs does.
func result(rows, cols int, name string, inputs ...*Tensor) *Tensor {
	requires := false
	for _, in := range inputs {
		if in.RequiresGrad {
			requires = true
			break
		}
	}
	t, _ := NewZerosTensor(rows, cols, &TensorConfig{RequiresGrad: requires, Name: name})
	if requires {
		t.children = inputs
	}
	return t
}

// accumulate adds delta into dst.Grad if dst tracks gradients.
func accumulate(dst *Tensor, delta mat.Matrix) {
	if dst.Grad == nil {
		return
	}
	var tmp mat.Dense
	tmp.Add(dst.Grad, delta)
	dst.Grad.Copy(&tmp)
}
