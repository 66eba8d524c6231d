package nn

import (
	"github.com/born-ml/dac/internal/tensor"
)

// Parameter is a named trainable tensor. Optimizers update the tensor in place,
// so every module holding the parameter sees the new values.
//
// The gradient slot holds the last gradient an optimizer stepped with; it is
// informational and cleared by ZeroGrad.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter wraps t as a parameter called name ("weight", "bias").
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the parameter values.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }

// Grad returns the recorded gradient, or nil.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] { return p.grad }

// SetGrad records grad as the current gradient.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) { p.grad = grad }

// ZeroGrad drops the recorded gradient.
func (p *Parameter[B]) ZeroGrad() { p.grad = nil }
