// Package optim holds the first-order optimizers used to train the
// classifier and the two halves of the CycleGAN.
//
// An optimizer is built over a parameter group and only ever updates that
// group. Step looks up each of its parameters in the gradient map returned
// by autodiff.Backward and leaves every other entry alone, so a generator
// optimizer and a discriminator optimizer may share one map safely.
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-4}, backend)
//	_, grads := autodiff.ValueAndGrad(backend, lossFn)
//	opt.Step(grads)
//	opt.ZeroGrad()
package optim

import (
	"fmt"

	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// Gradients maps a parameter's raw tensor to its gradient.
type Gradients = map[*tensor.RawTensor]*tensor.RawTensor

// Optimizer updates a fixed parameter group in place.
type Optimizer interface {
	// Step applies one update. Gradient tensors are read, never written.
	Step(grads Gradients)
	// ZeroGrad drops the gradients attached to the group.
	ZeroGrad()
	// GetLR reports the current learning rate.
	GetLR() float32
}

// Config carries the settings shared by every optimizer.
type Config struct {
	LR float32
}

// group is the parameter bookkeeping common to SGD and Adam.
type group[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	backend B
}

// each calls fn with the flat data of every parameter in the group that has
// a gradient in grads. The gradient is also attached to the parameter.
func (g *group[B]) each(grads Gradients, fn func(p *nn.Parameter[B], w, dw []float32)) {
	for _, p := range g.params {
		if p == nil {
			continue
		}
		raw, ok := grads[p.Tensor().Raw()]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(p.Tensor().Shape()) {
			panic(fmt.Sprintf("optim: %s has shape %v but its gradient is %v",
				p.Name(), p.Tensor().Shape(), raw.Shape()))
		}
		p.SetGrad(tensor.New[float32, B](raw, g.backend))
		fn(p, p.Tensor().Raw().AsFloat32(), raw.AsFloat32())
	}
}

// ZeroGrad clears the gradient of every parameter in the group.
func (g *group[B]) ZeroGrad() {
	for _, p := range g.params {
		p.ZeroGrad()
	}
}

// GetLR returns the learning rate.
func (g *group[B]) GetLR() float32 { return g.lr }

// SetLR replaces the learning rate for subsequent steps.
func (g *group[B]) SetLR(lr float32) { g.lr = lr }

// Params returns the parameter group this optimizer updates.
func (g *group[B]) Params() []*nn.Parameter[B] { return g.params }

// state returns the per-parameter slot in m, allocating it on first use.
func state[B tensor.Backend](m map[*nn.Parameter[B]][]float32, p *nn.Parameter[B], n int) []float32 {
	s, ok := m[p]
	if !ok {
		s = make([]float32, n)
		m[p] = s
	}
	return s
}
