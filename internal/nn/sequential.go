package nn

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// Sequential feeds the output of each module into the next.
//
//	block := nn.NewSequential[Backend](
//	    nn.NewConv2D(3, 8, 3, 3, 1, 1, true, rng, backend),
//	    nn.NewReLU[Backend](),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential chains modules in the given order.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Forward applies every module in turn.
func (s *Sequential[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, m := range s.modules {
		x = m.Forward(x)
	}
	return x
}

// Parameters concatenates the parameters of all modules in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Add appends m.
func (s *Sequential[B]) Add(m Module[B]) { s.modules = append(s.modules, m) }

// Len returns the number of modules.
func (s *Sequential[B]) Len() int { return len(s.modules) }

// Module returns the i-th module.
func (s *Sequential[B]) Module(i int) Module[B] {
	if i < 0 || i >= len(s.modules) {
		panic(fmt.Sprintf("sequential: module %d out of range [0, %d)", i, len(s.modules)))
	}
	return s.modules[i]
}
