package nn

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// ReLUBackend is a backend with a ReLU kernel.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// SigmoidBackend is a backend with a sigmoid kernel.
type SigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
}

// activate runs kernel when the input's backend provides it.
func activate[K any, B tensor.Backend](name string, x *tensor.Tensor[float32, B], kernel func(K, *tensor.RawTensor) *tensor.RawTensor) *tensor.Tensor[float32, B] {
	b := x.Backend()
	k, ok := any(b).(K)
	if !ok {
		panic(fmt.Sprintf("%s: backend %T has no %s kernel", name, b, name))
	}
	return tensor.New[float32, B](kernel(k, x.Raw()), b)
}

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU module.
func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

// Forward applies the activation.
func (*ReLU[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return activate("relu", x, ReLUBackend.ReLU)
}

// Parameters returns nil.
func (*ReLU[B]) Parameters() []*Parameter[B] { return nil }

// Sigmoid applies 1 / (1 + exp(-x)) element-wise. The UNet ends in a Sigmoid
// so generated images stay in [0, 1] like the data.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a Sigmoid module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] { return &Sigmoid[B]{} }

// Forward applies the activation.
func (*Sigmoid[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return activate("sigmoid", x, SigmoidBackend.Sigmoid)
}

// Parameters returns nil.
func (*Sigmoid[B]) Parameters() []*Parameter[B] { return nil }

// Flatten reshapes [N, d1, d2, ...] to [N, d1*d2*...].
type Flatten[B tensor.Backend] struct{}

// NewFlatten creates a Flatten module.
func NewFlatten[B tensor.Backend]() *Flatten[B] { return &Flatten[B]{} }

// Forward flattens every axis after the batch axis. Inputs of rank below two
// are returned unchanged.
func (*Flatten[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s := x.Shape()
	if len(s) < 2 {
		return x
	}
	return x.Reshape(s[0], s[1:].NumElements())
}

// Parameters returns nil.
func (*Flatten[B]) Parameters() []*Parameter[B] { return nil }
