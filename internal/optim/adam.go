package optim

import (
	"math"

	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// AdamConfig configures NewAdam. Zero fields fall back to LR 1e-3,
// Betas (0.9, 0.999) and Eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// Adam is the optimizer of Kingma and Ba (2014) with bias-corrected moments:
//
//	m = b1*m + (1-b1)*g
//	v = b2*v + (1-b2)*g*g
//	w = w - lr * (m/(1-b1^t)) / (sqrt(v/(1-b2^t)) + eps)
//
// The CycleGAN trainer keeps one over the generator and a second, much
// slower one over the discriminator.
type Adam[B tensor.Backend] struct {
	group[B]
	beta1, beta2 float32
	eps          float32
	t            int
	m, v         map[*nn.Parameter[B]][]float32
}

// NewAdam builds an Adam optimizer over params.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 1e-3
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		group: group[B]{params: params, lr: config.LR, backend: backend},
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     make(map[*nn.Parameter[B]][]float32),
		v:     make(map[*nn.Parameter[B]][]float32),
	}
}

// Step advances the timestep and updates every parameter with a gradient.
// The timestep advances even when no parameter of the group has one.
func (a *Adam[B]) Step(grads Gradients) {
	a.t++
	c1 := 1 - float32(math.Pow(float64(a.beta1), float64(a.t)))
	c2 := 1 - float32(math.Pow(float64(a.beta2), float64(a.t)))

	a.each(grads, func(p *nn.Parameter[B], w, dw []float32) {
		m := state(a.m, p, len(w))
		v := state(a.v, p, len(w))
		for i, g := range dw {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			w[i] -= a.lr * (m[i] / c1) / (float32(math.Sqrt(float64(v[i]/c2))) + a.eps)
		}
	})
}

// GetTimestep returns the number of steps taken so far.
func (a *Adam[B]) GetTimestep() int { return a.t }
