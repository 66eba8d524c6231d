package cpu

import (
	"math"

	"github.com/born-ml/dac/internal/tensor"
)

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Sigmoid computes 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	})
}

// Softmax normalises exp(x - max) along dim.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)

	shape := x.Shape()
	dim = tensor.NormalizeDim(dim, len(shape))
	result := tensor.MustRaw(shape, tensor.Float32, cpu.device)
	src, dst := x.AsFloat32(), result.AsFloat32()
	size := shape[dim]
	lanes(shape, dim, func(_, base, step int) {
		top := float32(math.Inf(-1))
		for k := range size {
			top = max(top, src[base+k*step])
		}
		var z float64
		for k := range size {
			e := math.Exp(float64(src[base+k*step] - top))
			dst[base+k*step] = float32(e)
			z += e
		}
		for k := range size {
			dst[base+k*step] = float32(float64(dst[base+k*step]) / z)
		}
	})
	return result
}
