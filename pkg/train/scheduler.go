package train

import "math"

// Scheduler decays the learning rate on two signals computed from the
// epoch-loss history: the loss failed to improve, or the latest loss change
// deviates sharply from the recent average change. It keeps state across
// epochs; one Scheduler belongs to one training run.
type Scheduler struct {
	// Factor multiplies the learning rate on every decay.
	Factor float64
	// Window is how many past deltas the deviation test averages over.
	Window int
	// DeviationFactor triggers a decay when the latest absolute change
	// exceeds this multiple of the windowed average change.
	DeviationFactor float64

	history []float64
}

// NewScheduler returns the schedule used by the experiment: decay by 0.95,
// deviation test over the last 4 deltas with a 3x threshold.
func NewScheduler() *Scheduler {
	return &Scheduler{Factor: 0.95, Window: 4, DeviationFactor: 3}
}

// Next records the epoch loss and returns the learning rate to use for the
// next epoch, decayed if either trigger fired.
func (s *Scheduler) Next(lr, loss float64) float64 {
	s.history = append(s.history, loss)
	if s.shouldDecay() {
		return lr * s.Factor
	}
	return lr
}

// History returns the recorded epoch losses.
func (s *Scheduler) History() []float64 { return s.history }

func (s *Scheduler) shouldDecay() bool {
	e := len(s.history) - 1
	if e >= 1 && s.history[e] >= s.history[e-1] {
		return true
	}
	if e >= s.Window+1 {
		avg := 0.0
		for i := 1; i <= s.Window; i++ {
			avg += math.Abs(s.history[e-i] - s.history[e-i-1])
		}
		avg /= float64(s.Window)
		if avg*s.DeviationFactor < math.Abs(s.history[e]-s.history[e-1]) {
			return true
		}
	}
	return false
}
