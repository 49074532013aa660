// Package train drives fine-tuning of the graph-convolution model: Adam
// over the trainable parameters, global-norm gradient clipping, and an
// adaptive learning-rate schedule keyed on the epoch-loss history.
package train

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/iwhite98/ntelligent-Chemistry/internal/dataset"
	"github.com/iwhite98/ntelligent-Chemistry/pkg/autodiff"
	"github.com/iwhite98/ntelligent-Chemistry/pkg/gcn"
)

// Config holds the fine-tuning hyperparameters.
type Config struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	ClipNorm     float64
	// Verbose controls the per-epoch progress line.
	Verbose bool
}

// NewDefaultConfig returns the experiment's hyperparameters: lr 5e-3,
// 100 epochs, batch size 32, clip norm 1.0.
func NewDefaultConfig() *Config {
	return &Config{
		LearningRate: 5e-3,
		Epochs:       100,
		BatchSize:    32,
		ClipNorm:     1.0,
		Verbose:      true,
	}
}

// Trainer fine-tunes a model on a featurized dataset.
type Trainer struct {
	Model     *gcn.Model
	Config    *Config
	Optimizer *AdamOptimizer
	Scheduler *Scheduler

	params map[string]*autodiff.Tensor
}

// New creates a trainer for the model. The parameter map is captured once;
// freezing must happen before construction.
func New(model *gcn.Model, config *Config) *Trainer {
	if config == nil {
		config = NewDefaultConfig()
	}
	return &Trainer{
		Model:     model,
		Config:    config,
		Optimizer: NewAdamOptimizer(config.LearningRate),
		Scheduler: NewScheduler(),
		params:    model.NamedParameters(),
	}
}

// Fit runs the training loop and returns the mean loss of every epoch.
// Batches are visited in dataset order; parameters are updated in place.
func (t *Trainer) Fit(ds *dataset.Dataset) ([]float64, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	batches := ds.Batches(t.Config.BatchSize)
	losses := make([]float64, 0, t.Config.Epochs)
	for epoch := 0; epoch < t.Config.Epochs; epoch++ {
		epochLoss := 0.0
		for i, batch := range batches {
			loss, err := t.trainStep(batch)
			if err != nil {
				return nil, fmt.Errorf("epoch %d batch %d: %w", epoch, i, err)
			}
			epochLoss += loss
		}
		meanLoss := epochLoss / float64(len(batches))
		if t.Config.Verbose {
			fmt.Printf("%d  loss : %.6f\n", epoch, meanLoss)
		}
		losses = append(losses, meanLoss)
		t.Optimizer.LearningRate = t.Scheduler.Next(t.Optimizer.LearningRate, meanLoss)
	}
	return losses, nil
}

// trainStep runs one batch: forward every sample, average the losses,
// backpropagate once, clip and apply the optimizer.
func (t *Trainer) trainStep(batch []dataset.Sample) (float64, error) {
	if len(batch) == 0 {
		return 0, fmt.Errorf("empty batch")
	}
	t.zeroGradients()

	var total *autodiff.Tensor
	for i, sample := range batch {
		loss, err := t.sampleLoss(sample)
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		if total == nil {
			total = loss
			continue
		}
		if total, err = autodiff.Add(total, loss); err != nil {
			return 0, fmt.Errorf("accumulate loss: %w", err)
		}
	}
	avg, err := autodiff.ScalarMultiply(total, 1.0/float64(len(batch)))
	if err != nil {
		return 0, fmt.Errorf("average loss: %w", err)
	}
	if err := avg.Backward(); err != nil {
		return 0, fmt.Errorf("backward pass: %w", err)
	}

	ClipGradients(t.params, t.Config.ClipNorm)
	t.Optimizer.Step(t.params)
	return avg.Value(), nil
}

// sampleLoss builds the forward graph and MSE loss for one molecule.
func (t *Trainer) sampleLoss(sample dataset.Sample) (*autodiff.Tensor, error) {
	pred, err := t.Model.Forward(sample.Graph)
	if err != nil {
		return nil, err
	}
	target, err := autodiff.NewTensor(mat.NewDense(1, 1, []float64{sample.Target}), &autodiff.TensorConfig{Name: "target"})
	if err != nil {
		return nil, err
	}
	return autodiff.MSELoss(pred, target)
}

// Evaluate computes the mean batch MSE over the dataset without touching
// any parameter.
func (t *Trainer) Evaluate(ds *dataset.Dataset) (float64, error) {
	if ds.Len() == 0 {
		return 0, fmt.Errorf("empty evaluation set")
	}
	total := 0.0
	batches := ds.Batches(t.Config.BatchSize)
	for i, batch := range batches {
		batchLoss := 0.0
		for _, sample := range batch {
			loss, err := t.sampleLoss(sample)
			if err != nil {
				return 0, fmt.Errorf("evaluate batch %d: %w", i, err)
			}
			batchLoss += loss.Value()
		}
		total += batchLoss / float64(len(batch))
	}
	return total / float64(len(batches)), nil
}

// Predictions runs a forward pass per sample and returns predicted and
// actual target slices, for reporting.
func (t *Trainer) Predictions(ds *dataset.Dataset) (predicted, actual []float64, err error) {
	for i := 0; i < ds.Len(); i++ {
		sample := ds.Sample(i)
		pred, err := t.Model.Forward(sample.Graph)
		if err != nil {
			return nil, nil, fmt.Errorf("predict sample %d: %w", i, err)
		}
		predicted = append(predicted, pred.Value())
		actual = append(actual, sample.Target)
	}
	return predicted, actual, nil
}

func (t *Trainer) zeroGradients() {
	for _, p := range t.params {
		if p.RequiresGrad {
			p.ZeroGrad()
		}
	}
}
