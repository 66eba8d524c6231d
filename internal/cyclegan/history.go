package cyclegan

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// StepLosses are the three scalar losses of one training step.
type StepLosses struct {
	Cycle         float32 `yaml:"cycle"`
	Adversarial   float32 `yaml:"adv"`
	Discriminator float32 `yaml:"disc"`
}

// LossHistory is the append-only per-step record of training losses.
type LossHistory struct {
	Cycle         []float32 `yaml:"cycle"`
	Adversarial   []float32 `yaml:"adv"`
	Discriminator []float32 `yaml:"disc"`
}

// Append records one step.
func (h *LossHistory) Append(l StepLosses) {
	h.Cycle = append(h.Cycle, l.Cycle)
	h.Adversarial = append(h.Adversarial, l.Adversarial)
	h.Discriminator = append(h.Discriminator, l.Discriminator)
}

// Len returns the number of recorded steps.
func (h *LossHistory) Len() int { return len(h.Cycle) }

// Mean averages steps [from, to).
func (h *LossHistory) Mean(from, to int) (StepLosses, error) {
	if from < 0 || to > h.Len() || from >= to {
		return StepLosses{}, fmt.Errorf("cyclegan: invalid history range [%d, %d) of %d steps", from, to, h.Len())
	}
	return StepLosses{
		Cycle:         mean(h.Cycle[from:to]),
		Adversarial:   mean(h.Adversarial[from:to]),
		Discriminator: mean(h.Discriminator[from:to]),
	}, nil
}

func mean(v []float32) float32 {
	f := make([]float64, len(v))
	for i, x := range v {
		f[i] = float64(x)
	}
	return float32(floats.Sum(f) / float64(len(f)))
}
