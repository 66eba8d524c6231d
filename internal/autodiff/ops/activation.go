package ops

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// ReLUOp is max(0, x).
type ReLUOp struct{ node }

// NewReLUOp records output = relu(x).
func NewReLUOp(x, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{edges(output, x)}
}

// Backward keeps the gradient where x > 0.
func (op *ReLUOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	x := op.inputs[0]
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}
	gate := full(x.Shape(), 0, backend.Device())
	gd := gate.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			gd[i] = 1
		}
	}
	return []*tensor.RawTensor{backend.Mul(g, gate)}
}

// SigmoidOp is 1 / (1 + exp(-x)).
type SigmoidOp struct{ node }

// NewSigmoidOp records output = sigmoid(x).
func NewSigmoidOp(x, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{edges(output, x)}
}

// Backward uses the recorded output: dσ/dx = σ(1 - σ).
func (op *SigmoidOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	s := op.output
	slope := backend.Mul(s, backend.AddScalar(backend.MulScalar(s, -1), 1))
	return []*tensor.RawTensor{backend.Mul(g, slope)}
}
