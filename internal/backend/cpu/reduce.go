package cpu

import (
	"fmt"
	"slices"

	"github.com/born-ml/dac/internal/tensor"
)

// Sum adds every element of x, accumulating in float64, into a [1] tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("sum", x)

	result := tensor.MustRaw(tensor.Shape{1}, tensor.Float32, cpu.device)
	var sum float64
	for _, v := range x.AsFloat32() {
		sum += float64(v)
	}
	result.AsFloat32()[0] = float32(sum)
	return result
}

// SumTo reduces x to shape by summing over broadcast dimensions. It is the adjoint of
// Expand: SumTo(Expand(t, s), t.Shape()) accumulates every copy back into t.
//
//	SumTo([2, 3, 4], [3, 1]) sums over dims 0 and 2.
func (cpu *CPUBackend) SumTo(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if x.Shape().Equal(shape) {
		return x.Clone()
	}
	out, _, err := tensor.BroadcastShapes(shape, x.Shape())
	if err != nil || !out.Equal(x.Shape()) {
		panic(fmt.Sprintf("sum_to: cannot reduce %v to %v", x.Shape(), shape))
	}

	result := tensor.MustRaw(shape, tensor.Float32, cpu.device)
	idx := broadcastIndex(shape, x.Shape())
	dst, src := result.AsFloat32(), x.AsFloat32()
	for i, v := range src {
		dst[idx[i]] += v
	}
	return result
}

// Argmax returns the int32 index of the maximum value along dim. The reduced
// dimension is removed from the result shape; ties resolve to the lowest index.
//
//	logits [N, K] -> Argmax(logits, 1) -> predictions [N]
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("argmax", x)

	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))

	outShape := slices.Delete(shape.Clone(), dim, dim+1)
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := tensor.MustRaw(outShape, tensor.Int32, cpu.device)
	src, dst := x.AsFloat32(), result.AsInt32()
	lanes(shape, dim, func(lane, base, step int) {
		best := 0
		for k := 1; k < shape[dim]; k++ {
			if src[base+k*step] > src[base+best*step] {
				best = k
			}
		}
		dst[lane] = int32(best)
	})
	return result
}
