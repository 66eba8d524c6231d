package ops

import "github.com/born-ml/dac/internal/tensor"

// ReshapeOp changes the shape of x without moving data.
type ReshapeOp struct{ node }

// NewReshapeOp records output = reshape(x).
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{edges(output, x)}
}

// Backward reshapes the gradient back to the shape of x.
func (op *ReshapeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(g, op.inputs[0].Shape())}
}

// TransposeOp permutes the axes of x.
type TransposeOp struct {
	node
	axes []int
}

// NewTransposeOp records output = transpose(x, axes).
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{node: edges(output, x), axes: axes}
}

// Backward applies the inverse permutation.
func (op *TransposeOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(g, inverse...)}
}

// CatOp joins inputs along dim. The generator uses it to stack the style map
// onto the image channels.
type CatOp struct {
	node
	dim int
}

// NewCatOp records output = cat(inputs, dim). dim must be normalized.
func NewCatOp(inputs []*tensor.RawTensor, dim int, output *tensor.RawTensor) *CatOp {
	return &CatOp{node: edges(output, inputs...), dim: dim}
}

// Backward slices the gradient back into one piece per input.
func (op *CatOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		grads[i] = backend.Narrow(g, op.dim, offset, size)
		offset += size
	}
	return grads
}

// NarrowOp takes a contiguous slice of x along dim.
type NarrowOp struct {
	node
	dim, start int
}

// NewNarrowOp records output = x[start:start+len] along dim. dim must be
// normalized.
func NewNarrowOp(x, output *tensor.RawTensor, dim, start int) *NarrowOp {
	return &NarrowOp{node: edges(output, x), dim: dim, start: start}
}

// Backward pads the gradient with zeros to the extent of x.
func (op *NarrowOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	total := op.inputs[0].Shape()[op.dim]
	after := total - op.start - g.Shape()[op.dim]
	if op.start == 0 && after == 0 {
		return []*tensor.RawTensor{g}
	}

	zeros := func(size int) *tensor.RawTensor {
		s := g.Shape().Clone()
		s[op.dim] = size
		return full(s, 0, backend.Device())
	}
	var parts []*tensor.RawTensor
	if op.start > 0 {
		parts = append(parts, zeros(op.start))
	}
	parts = append(parts, g)
	if after > 0 {
		parts = append(parts, zeros(after))
	}
	return []*tensor.RawTensor{backend.Cat(parts, op.dim)}
}

// ExpandOp broadcasts x to a larger shape, e.g. a [N, S, 1, 1] style embedding
// over the image plane.
type ExpandOp struct{ node }

// NewExpandOp records output = expand(x).
func NewExpandOp(x, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{edges(output, x)}
}

// Backward accumulates every broadcast copy.
func (op *ExpandOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{unbroadcast(g, op.inputs[0].Shape(), backend)}
}
