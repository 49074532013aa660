// Package gcn implements the graph-convolution model used for free-energy
// prediction: an atom-feature embedding, a stack of convolution layers that
// aggregate over the bond graph, mean pooling, and a feed-forward head
// producing one scalar per molecule.
package gcn

import (
	"fmt"
	"sort"

	"github.com/iwhite98/ntelligent-Chemistry/internal/featurize"
	"github.com/iwhite98/ntelligent-Chemistry/pkg/autodiff"
)

// Config represents the model architecture.
type Config struct {
	NumAtomFeatures int
	Channels        int
	ConvLayers      int
	BottleneckDim   int
}

// NewDefaultConfig returns the architecture used by the pretraining run:
// 16 atom features, 128 channels, 3 convolution layers, 1024 bottleneck.
func NewDefaultConfig() *Config {
	return &Config{
		NumAtomFeatures: featurize.NumAtomFeatures,
		Channels:        128,
		ConvLayers:      3,
		BottleneckDim:   1024,
	}
}

// Linear is a dense layer holding a weight matrix and a bias row.
type Linear struct {
	Weight *autodiff.Tensor
	Bias   *autodiff.Tensor
}

// NewLinear creates a layer with small random weights and zero bias. The
// name prefixes the parameter names used for checkpoints.
func NewLinear(name string, in, out int) (*Linear, error) {
	w, err := autodiff.NewRandomTensor(in, out, &autodiff.TensorConfig{RequiresGrad: true, Name: name + ".weight"})
	if err != nil {
		return nil, fmt.Errorf("create %s weight: %w", name, err)
	}
	b, err := autodiff.NewZerosTensor(1, out, &autodiff.TensorConfig{RequiresGrad: true, Name: name + ".bias"})
	if err != nil {
		return nil, fmt.Errorf("create %s bias: %w", name, err)
	}
	return &Linear{Weight: w, Bias: b}, nil
}

// Apply computes x*W + b.
func (l *Linear) Apply(x *autodiff.Tensor) (*autodiff.Tensor, error) {
	y, err := autodiff.MatMul(x, l.Weight)
	if err != nil {
		return nil, err
	}
	return autodiff.AddBias(y, l.Bias)
}

// freeze disables gradient tracking on both parameters.
func (l *Linear) freeze() {
	l.Weight.RequiresGrad = false
	l.Weight.Grad = nil
	l.Bias.RequiresGrad = false
	l.Bias.Grad = nil
}

// Model is the transfer-learning network.
type Model struct {
	Config    *Config
	Embedding *Linear
	Conv      []*Linear
	FC        *Linear
	Head1     *Linear
	Head2     *Linear
}

// New builds a model with freshly initialized parameters.
func New(config *Config) (*Model, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	m := &Model{Config: config}

	var err error
	if m.Embedding, err = NewLinear("embedding", config.NumAtomFeatures, config.Channels); err != nil {
		return nil, err
	}
	for i := 0; i < config.ConvLayers; i++ {
		layer, err := NewLinear(fmt.Sprintf("conv.%d", i), config.Channels, config.Channels)
		if err != nil {
			return nil, err
		}
		m.Conv = append(m.Conv, layer)
	}
	if m.FC, err = NewLinear("fc", config.Channels, config.BottleneckDim); err != nil {
		return nil, err
	}
	if m.Head1, err = NewLinear("head1", config.BottleneckDim, config.BottleneckDim); err != nil {
		return nil, err
	}
	if m.Head2, err = NewLinear("head2", config.BottleneckDim, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// Forward runs one featurized molecule through the network and returns a
// 1x1 prediction tensor. Padding rows stay zero through the convolution
// stack because their adjacency rows are zero; pooling divides by the
// padded atom count.
func (m *Model) Forward(g *featurize.Graph) (*autodiff.Tensor, error) {
	x, err := autodiff.NewTensor(g.Features, &autodiff.TensorConfig{Name: "features"})
	if err != nil {
		return nil, err
	}
	adj, err := autodiff.NewTensor(g.Adjacency, &autodiff.TensorConfig{Name: "adjacency"})
	if err != nil {
		return nil, err
	}

	h, err := m.Embedding.Apply(x)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	for i, layer := range m.Conv {
		if h, err = layer.Apply(h); err != nil {
			return nil, fmt.Errorf("conv layer %d: %w", i, err)
		}
		if h, err = autodiff.MatMul(adj, h); err != nil {
			return nil, fmt.Errorf("conv layer %d aggregation: %w", i, err)
		}
		if h, err = autodiff.ReLU(h); err != nil {
			return nil, fmt.Errorf("conv layer %d activation: %w", i, err)
		}
	}

	if h, err = autodiff.MeanRows(h); err != nil {
		return nil, fmt.Errorf("pooling: %w", err)
	}
	if h, err = m.FC.Apply(h); err != nil {
		return nil, fmt.Errorf("fc: %w", err)
	}
	if h, err = autodiff.Sigmoid(h); err != nil {
		return nil, fmt.Errorf("fc activation: %w", err)
	}
	if h, err = m.Head1.Apply(h); err != nil {
		return nil, fmt.Errorf("head1: %w", err)
	}
	if h, err = autodiff.ReLU(h); err != nil {
		return nil, fmt.Errorf("head1 activation: %w", err)
	}
	if h, err = m.Head2.Apply(h); err != nil {
		return nil, fmt.Errorf("head2: %w", err)
	}
	return h, nil
}

// NamedParameters returns every parameter tensor keyed by its checkpoint
// name.
func (m *Model) NamedParameters() map[string]*autodiff.Tensor {
	params := make(map[string]*autodiff.Tensor)
	add := func(l *Linear) {
		params[l.Weight.Name] = l.Weight
		params[l.Bias.Name] = l.Bias
	}
	add(m.Embedding)
	for _, layer := range m.Conv {
		add(layer)
	}
	add(m.FC)
	add(m.Head1)
	add(m.Head2)
	return params
}

// ParameterNames returns the checkpoint names in sorted order.
func (m *Model) ParameterNames() []string {
	params := m.NamedParameters()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FreezeConvStack disables gradient tracking on the convolution layers so
// the optimizer leaves them untouched; the embedding and the head remain
// trainable. Gradients still flow through the frozen layers to the
// embedding underneath.
func (m *Model) FreezeConvStack() {
	for _, layer := range m.Conv {
		layer.freeze()
	}
}
