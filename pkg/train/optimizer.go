package train

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/iwhite98/ntelligent-Chemistry/pkg/autodiff"
)

// AdamOptimizer implements the Adam optimization algorithm over a named
// parameter map. Parameters without gradients (frozen layers) are skipped.
type AdamOptimizer struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m map[string]*mat.Dense
	v map[string]*mat.Dense
	t int
}

// NewAdamOptimizer creates an Adam optimizer with the standard moment
// coefficients.
func NewAdamOptimizer(lr float64) *AdamOptimizer {
	return &AdamOptimizer{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make(map[string]*mat.Dense),
		v:            make(map[string]*mat.Dense),
	}
}

// Step applies one update to every trainable parameter.
func (opt *AdamOptimizer) Step(params map[string]*autodiff.Tensor) {
	opt.t++
	bc1 := 1.0 - math.Pow(opt.Beta1, float64(opt.t))
	bc2 := 1.0 - math.Pow(opt.Beta2, float64(opt.t))
	for name, param := range params {
		if param.Grad == nil || !param.RequiresGrad {
			continue
		}
		rows, cols := param.Dims()
		if _, ok := opt.m[name]; !ok {
			opt.m[name] = mat.NewDense(rows, cols, nil)
			opt.v[name] = mat.NewDense(rows, cols, nil)
		}
		m, v := opt.m[name], opt.v[name]
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				g := param.Grad.At(i, j)
				m.Set(i, j, opt.Beta1*m.At(i, j)+(1.0-opt.Beta1)*g)
				v.Set(i, j, opt.Beta2*v.At(i, j)+(1.0-opt.Beta2)*g*g)
				mHat := m.At(i, j) / bc1
				vHat := v.At(i, j) / bc2
				param.Data.Set(i, j, param.Data.At(i, j)-opt.LearningRate*mHat/(math.Sqrt(vHat)+opt.Epsilon))
			}
		}
	}
}

// ClipGradients rescales all gradients so their global L2 norm does not
// exceed maxNorm.
func ClipGradients(params map[string]*autodiff.Tensor, maxNorm float64) {
	if maxNorm <= 0 {
		return
	}
	totalNormSq := 0.0
	for _, param := range params {
		if param.Grad == nil || !param.RequiresGrad {
			continue
		}
		n := mat.Norm(param.Grad, 2)
		totalNormSq += n * n
	}
	totalNorm := math.Sqrt(totalNormSq)
	if totalNorm <= maxNorm {
		return
	}
	clipFactor := maxNorm / (totalNorm + 1e-6)
	for _, param := range params {
		if param.Grad == nil || !param.RequiresGrad {
			continue
		}
		param.Grad.Scale(clipFactor, param.Grad)
	}
}
