// Package nn holds the layers that the classifier, the discriminator, the
// style mapping network and the UNet generator are assembled from.
//
// Layers are generic over the tensor backend. Wrapping a CPU backend in
// autodiff.AutodiffBackend makes every layer differentiable without any
// change to the layer itself.
package nn

import "github.com/born-ml/dac/internal/tensor"

// Module is a differentiable function with trainable state.
//
//	model := nn.NewSequential[Backend](
//	    nn.NewFlatten[Backend](),
//	    nn.NewLinear(784, 120, rng, backend),
//	    nn.NewReLU[Backend](),
//	    nn.NewLinear(120, 4, rng, backend),
//	)
type Module[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	// Parameters lists the trainable parameters, nested modules included.
	// Stateless modules return an empty slice.
	Parameters() []*Parameter[B]
}

// ParameterCount sums the element counts of params.
func ParameterCount[B tensor.Backend](params []*Parameter[B]) int {
	var n int
	for _, p := range params {
		n += p.Tensor().NumElements()
	}
	return n
}

// Snapshot copies the current values of params.
func Snapshot[B tensor.Backend](params []*Parameter[B]) [][]float32 {
	out := make([][]float32, 0, len(params))
	for _, p := range params {
		out = append(out, append([]float32(nil), p.Tensor().Data()...))
	}
	return out
}
