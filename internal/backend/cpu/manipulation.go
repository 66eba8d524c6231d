package cpu

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// around splits shape at dim into the element counts before and after it.
func around(shape tensor.Shape, dim int) (outer, inner int) {
	return shape[:dim].NumElements(), shape[dim+1:].NumElements()
}

// Cat joins tensors along dim. Ranks, dtypes and all other extents must match.
//
//	xs := backend.Cat([]*tensor.RawTensor{x, styleMap}, 1) // [8, 3+s, 28, 28]
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	first := tensors[0]
	shape := first.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))

	joined := 0
	for i, t := range tensors {
		s := t.Shape()
		ok := len(s) == len(shape) && t.DType() == first.DType()
		for d := 0; ok && d < len(s); d++ {
			ok = d == dim || s[d] == shape[d]
		}
		if !ok {
			panic(fmt.Sprintf("cat: tensor %d is %s%v, want %s%v outside dimension %d",
				i, t.DType(), s, first.DType(), shape, dim))
		}
		joined += s[dim]
	}

	outShape := shape.Clone()
	outShape[dim] = joined
	out := tensor.MustRaw(outShape, first.DType(), cpu.device)

	outer, inner := around(shape, dim)
	row := joined * inner
	pos := 0
	for _, t := range tensors {
		chunk := t.Shape()[dim] * inner
		for o := range outer {
			copyRange(out, o*row+pos, t, o*chunk, chunk)
		}
		pos += chunk
	}
	return out
}

// Narrow keeps entries [start, start+length) of dimension dim.
func (cpu *CPUBackend) Narrow(x *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: [%d, %d) outside dimension %d of %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length
	out := tensor.MustRaw(outShape, x.DType(), cpu.device)

	outer, inner := around(shape, dim)
	for o := range outer {
		copyRange(out, o*length*inner, x, (o*shape[dim]+start)*inner, length*inner)
	}
	return out
}

// Expand repeats size-1 dimensions of x, and prepends missing ones, until it
// has the given shape.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if got, _, err := tensor.BroadcastShapes(x.Shape(), shape); err != nil || !got.Equal(shape) {
		panic(fmt.Sprintf("expand: %v does not broadcast to %v", x.Shape(), shape))
	}
	return gather(x, shape, broadcastIndex(x.Shape(), shape), cpu.device)
}

func copyRange(dst *tensor.RawTensor, dstOff int, src *tensor.RawTensor, srcOff, n int) {
	if src.DType() == tensor.Int32 {
		copy(dst.AsInt32()[dstOff:dstOff+n], src.AsInt32()[srcOff:srcOff+n])
		return
	}
	copy(dst.AsFloat32()[dstOff:dstOff+n], src.AsFloat32()[srcOff:srcOff+n])
}
