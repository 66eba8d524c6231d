package optim

import (
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// SGDConfig configures NewSGD. A zero LR means 0.01.
type SGDConfig struct {
	LR       float32
	Momentum float32 // in [0, 1); 0 disables the velocity buffer
}

// SGD is stochastic gradient descent with optional heavy-ball momentum:
//
//	v = momentum*v + g
//	w = w - lr*v
type SGD[B tensor.Backend] struct {
	group[B]
	momentum float32
	velocity map[*nn.Parameter[B]][]float32
}

// NewSGD builds an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		group:    group[B]{params: params, lr: config.LR, backend: backend},
		momentum: config.Momentum,
		velocity: make(map[*nn.Parameter[B]][]float32),
	}
}

// Step applies one update to every parameter that has a gradient.
func (s *SGD[B]) Step(grads Gradients) {
	s.each(grads, func(p *nn.Parameter[B], w, dw []float32) {
		if s.momentum == 0 {
			for i := range w {
				w[i] -= s.lr * dw[i]
			}
			return
		}
		v := state(s.velocity, p, len(w))
		for i := range w {
			v[i] = s.momentum*v[i] + dw[i]
			w[i] -= s.lr * v[i]
		}
	})
}
