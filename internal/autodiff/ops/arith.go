package ops

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// AddOp is a + b with broadcasting.
type AddOp struct{ node }

// NewAddOp records output = a + b.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{edges(output, a, b)}
}

// Backward passes the gradient to both sides, summed over broadcast axes.
func (op *AddOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		unbroadcast(g, op.inputs[0].Shape(), backend),
		unbroadcast(g, op.inputs[1].Shape(), backend),
	}
}

// SubOp is a - b with broadcasting.
type SubOp struct{ node }

// NewSubOp records output = a - b.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{edges(output, a, b)}
}

// Backward returns (g, -g), summed over broadcast axes.
func (op *SubOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		unbroadcast(g, op.inputs[0].Shape(), backend),
		unbroadcast(backend.MulScalar(g, -1), op.inputs[1].Shape(), backend),
	}
}

// MulOp is the element-wise product a * b with broadcasting. Integrated
// gradients selects target logits with it.
type MulOp struct{ node }

// NewMulOp records output = a * b.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{edges(output, a, b)}
}

// Backward returns (g*b, g*a), summed over broadcast axes.
func (op *MulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		unbroadcast(backend.Mul(g, b), a.Shape(), backend),
		unbroadcast(backend.Mul(g, a), b.Shape(), backend),
	}
}

// MulScalarOp is x * s for a constant s.
type MulScalarOp struct {
	node
	scalar float32
}

// NewMulScalarOp records output = x * scalar.
func NewMulScalarOp(x, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{node: edges(output, x), scalar: scalar}
}

// Backward scales the gradient by the same constant.
func (op *MulScalarOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(g, op.scalar)}
}

// AddScalarOp is x + s for a constant s.
type AddScalarOp struct{ node }

// NewAddScalarOp records output = x + scalar.
func NewAddScalarOp(x, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{edges(output, x)}
}

// Backward is the identity.
func (op *AddScalarOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{g}
}

// MatMulOp is the 2D product a @ b.
type MatMulOp struct{ node }

// NewMatMulOp records output = a @ b.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{edges(output, a, b)}
}

// Backward returns (g @ bᵀ, aᵀ @ g).
func (op *MatMulOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.MatMul(g, backend.Transpose(b, 1, 0)),
		backend.MatMul(backend.Transpose(a, 1, 0), g),
	}
}

// SumOp reduces x to a single value.
type SumOp struct{ node }

// NewSumOp records output = Σ x.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{edges(output, x)}
}

// Backward spreads the scalar gradient over every element of x.
func (op *SumOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{full(op.inputs[0].Shape(), scalar("sum", g), backend.Device())}
}

func scalar(op string, g *tensor.RawTensor) float32 {
	if g.NumElements() != 1 {
		panic(fmt.Sprintf("%s: expected a scalar output gradient, got shape %v", op, g.Shape()))
	}
	return g.AsFloat32()[0]
}
