// Package ops holds the differentiable operations recorded on the gradient
// tape. Forward values are computed by the backend; each operation only knows
// how to map the gradient of its output to gradients of its inputs.
//
// The operations cover what the classifier, discriminator, style mapping and
// UNet generator need: broadcasting arithmetic, MatMul, shape manipulation,
// Conv2D with max pooling and nearest upsampling, ReLU and sigmoid, and the
// cross-entropy and L1 losses.
package ops

import "github.com/born-ml/dac/internal/tensor"

// Operation is one recorded node of the computation graph.
type Operation interface {
	// Backward returns one gradient per input, in Inputs order. A nil entry
	// means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	Inputs() []*tensor.RawTensor
	Output() *tensor.RawTensor
}

// node stores the graph edges shared by every operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func edges(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}

// Inputs returns the operation inputs.
func (n node) Inputs() []*tensor.RawTensor { return n.inputs }

// Output returns the operation result.
func (n node) Output() *tensor.RawTensor { return n.output }

// unbroadcast sums grad down to shape, undoing broadcasting in the forward pass.
func unbroadcast(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(shape) {
		return grad
	}
	return backend.SumTo(grad, shape)
}

func full(shape tensor.Shape, v float32, device tensor.Device) *tensor.RawTensor {
	r := tensor.MustRaw(shape, tensor.Float32, device)
	if v != 0 {
		data := r.AsFloat32()
		for i := range data {
			data[i] = v
		}
	}
	return r
}
