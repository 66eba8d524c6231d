package cpu

import "github.com/born-ml/dac/internal/tensor"

// forEachIndex walks shape in row-major order. coords is reused between calls.
func forEachIndex(shape tensor.Shape, f func(flat int, coords []int)) {
	coords := make([]int, len(shape))
	for flat := range shape.NumElements() {
		f(flat, coords)
		for d := len(shape) - 1; d >= 0; d-- {
			if coords[d]++; coords[d] < shape[d] {
				break
			}
			coords[d] = 0
		}
	}
}

// broadcastIndex returns, for each position of out, the flat offset in a
// row-major src that broadcasting reads from. Stretched and missing
// dimensions contribute nothing to the offset.
func broadcastIndex(src, out tensor.Shape) []int {
	strides := make([]int, len(out))
	lead := len(out) - len(src)
	for i, s := range src.ComputeStrides() {
		if src[i] != 1 {
			strides[lead+i] = s
		}
	}
	idx := make([]int, out.NumElements())
	forEachIndex(out, func(flat int, coords []int) {
		for d, c := range coords {
			idx[flat] += c * strides[d]
		}
	})
	return idx
}

// gather returns a tensor of the given shape whose element i is src[idx[i]].
func gather(src *tensor.RawTensor, shape tensor.Shape, idx []int, device tensor.Device) *tensor.RawTensor {
	out := tensor.MustRaw(shape, src.DType(), device)
	if src.DType() == tensor.Int32 {
		gatherInto(out.AsInt32(), src.AsInt32(), idx)
	} else {
		gatherInto(out.AsFloat32(), src.AsFloat32(), idx)
	}
	return out
}

func gatherInto[T float32 | int32](dst, src []T, idx []int) {
	for i, j := range idx {
		dst[i] = src[j]
	}
}

// lanes calls f once for every 1-D slice of shape along dim, passing the
// flat offset of its first element, the step between its elements and the
// lane index in row-major order of the remaining dimensions.
func lanes(shape tensor.Shape, dim int, f func(lane, base, step int)) {
	outer, inner := around(shape, dim)
	size := shape[dim]
	for o := range outer {
		for i := range inner {
			f(o*inner+i, o*size*inner+i, inner)
		}
	}
}
