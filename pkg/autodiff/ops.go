package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MatMul performs matrix multiplication with gradient tracking.
func MatMul(a, b *Tensor) (*Tensor, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, fmt.Errorf("matrix dimensions don't match for multiplication: a(%dx%d), b(%dx%d)", ar, ac, br, bc)
	}
	out := result(ar, bc, "matmul", a, b)
	out.Data.Mul(a.Data, b.Data)

	if out.RequiresGrad {
		out.backwardFn = func() {
			if a.Grad != nil {
				var dA mat.Dense
				dA.Mul(out.Grad, b.Data.T())
				accumulate(a, &dA)
			}
			if b.Grad != nil {
				var dB mat.Dense
				dB.Mul(a.Data.T(), out.Grad)
				accumulate(b, &dB)
			}
		}
	}
	return out, nil
}

// Add performs element-wise addition with gradient tracking.
func Add(a, b *Tensor) (*Tensor, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return nil, fmt.Errorf("matrix dimensions don't match for addition: a(%dx%d), b(%dx%d)", ar, ac, br, bc)
	}
	out := result(ar, ac, "add", a, b)
	out.Data.Add(a.Data, b.Data)

	if out.RequiresGrad {
		out.backwardFn = func() {
			if a.Grad != nil {
				accumulate(a, out.Grad)
			}
			if b.Grad != nil {
				accumulate(b, out.Grad)
			}
		}
	}
	return out, nil
}

// AddBias adds a 1xC bias row to every row of an NxC tensor.
func AddBias(x, bias *Tensor) (*Tensor, error) {
	xr, xc := x.Dims()
	br, bc := bias.Dims()
	if br != 1 || bc != xc {
		return nil, fmt.Errorf("bias must be 1x%d, got %dx%d", xc, br, bc)
	}
	out := result(xr, xc, "add_bias", x, bias)
	for i := 0; i < xr; i++ {
		for j := 0; j < xc; j++ {
			out.Data.Set(i, j, x.Data.At(i, j)+bias.Data.At(0, j))
		}
	}

	if out.RequiresGrad {
		out.backwardFn = func() {
			if x.Grad != nil {
				accumulate(x, out.Grad)
			}
			if bias.Grad != nil {
				for j := 0; j < xc; j++ {
					sum := 0.0
					for i := 0; i < xr; i++ {
						sum += out.Grad.At(i, j)
					}
					bias.Grad.Set(0, j, bias.Grad.At(0, j)+sum)
				}
			}
		}
	}
	return out, nil
}

// ScalarMultiply multiplies a tensor by a scalar with gradient tracking.
func ScalarMultiply(a *Tensor, scalar float64) (*Tensor, error) {
	ar, ac := a.Dims()
	out := result(ar, ac, "scalar_multiply", a)
	out.Data.Scale(scalar, a.Data)

	if out.RequiresGrad {
		out.backwardFn = func() {
			if a.Grad != nil {
				var d mat.Dense
				d.Scale(scalar, out.Grad)
				accumulate(a, &d)
			}
		}
	}
	return out, nil
}

// ReLU applies the rectified linear activation with gradient tracking.
func ReLU(a *Tensor) (*Tensor, error) {
	ar, ac := a.Dims()
	out := result(ar, ac, "relu", a)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if v := a.Data.At(i, j); v > 0 {
				out.Data.Set(i, j, v)
			}
		}
	}

	if out.RequiresGrad {
		out.backwardFn = func() {
			if a.Grad == nil {
				return
			}
			for i := 0; i < ar; i++ {
				for j := 0; j < ac; j++ {
					if a.Data.At(i, j) > 0 {
						a.Grad.Set(i, j, a.Grad.At(i, j)+out.Grad.At(i, j))
					}
				}
			}
		}
	}
	return out, nil
}

// Sigmoid applies the logistic function with gradient tracking.
func Sigmoid(a *Tensor) (*Tensor, error) {
	ar, ac := a.Dims()
	out := result(ar, ac, "sigmoid", a)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			out.Data.Set(i, j, 1.0/(1.0+math.Exp(-a.Data.At(i, j))))
		}
	}

	if out.RequiresGrad {
		out.backwardFn = func() {
			if a.Grad == nil {
				return
			}
			for i := 0; i < ar; i++ {
				for j := 0; j < ac; j++ {
					s := out.Data.At(i, j)
					a.Grad.Set(i, j, a.Grad.At(i, j)+out.Grad.At(i, j)*s*(1.0-s))
				}
			}
		}
	}
	return out, nil
}

// MeanRows averages an NxC tensor over its rows, producing a 1xC tensor.
// With zero-padded inputs this matches dividing by the padded row count.
func MeanRows(a *Tensor) (*Tensor, error) {
	ar, ac := a.Dims()
	out := result(1, ac, "mean_rows", a)
	inv := 1.0 / float64(ar)
	for j := 0; j < ac; j++ {
		sum := 0.0
		for i := 0; i < ar; i++ {
			sum += a.Data.At(i, j)
		}
		out.Data.Set(0, j, sum*inv)
	}

	if out.RequiresGrad {
		out.backwardFn = func() {
			if a.Grad == nil {
				return
			}
			for i := 0; i < ar; i++ {
				for j := 0; j < ac; j++ {
					a.Grad.Set(i, j, a.Grad.At(i, j)+out.Grad.At(0, j)*inv)
				}
			}
		}
	}
	return out, nil
}

// MSELoss computes the mean squared error between predictions and targets
// as a 1x1 tensor; gradients flow into the predictions only.
func MSELoss(predictions, targets *Tensor) (*Tensor, error) {
	pr, pc := predictions.Dims()
	tr, tc := targets.Dims()
	if pr != tr || pc != tc {
		return nil, fmt.Errorf("predictions and targets dimensions don't match: predictions(%dx%d), targets(%dx%d)", pr, pc, tr, tc)
	}
	out := result(1, 1, "mse_loss", predictions)
	n := float64(pr * pc)
	loss := 0.0
	for i := 0; i < pr; i++ {
		for j := 0; j < pc; j++ {
			diff := predictions.Data.At(i, j) - targets.Data.At(i, j)
			loss += diff * diff
		}
	}
	out.Data.Set(0, 0, loss/n)

	if out.RequiresGrad {
		out.backwardFn = func() {
			if predictions.Grad == nil {
				return
			}
			g := out.Grad.At(0, 0)
			for i := 0; i < pr; i++ {
				for j := 0; j < pc; j++ {
					diff := predictions.Data.At(i, j) - targets.Data.At(i, j)
					predictions.Grad.Set(i, j, predictions.Grad.At(i, j)+2.0*diff*g/n)
				}
			}
		}
	}
	return out, nil
}
