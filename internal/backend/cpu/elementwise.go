package cpu

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// Add, Sub and Mul combine float32 tensors with NumPy broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary("mul_scalar", x, func(v float32) float32 { return v * scalar })
}

func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float32) *tensor.RawTensor {
	return cpu.unary("add_scalar", x, func(v float32) float32 { return v + scalar })
}

func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("%s: want float32, got %s", op, t.DType()))
		}
	}
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)
	shape, stretched, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	out := tensor.MustRaw(shape, tensor.Float32, cpu.device)
	dst, x, y := out.AsFloat32(), a.AsFloat32(), b.AsFloat32()
	if !stretched {
		for i := range dst {
			dst[i] = f(x[i], y[i])
		}
		return out
	}
	ai, bi := broadcastIndex(a.Shape(), shape), broadcastIndex(b.Shape(), shape)
	for i := range dst {
		dst[i] = f(x[ai[i]], y[bi[i]])
	}
	return out
}

func (cpu *CPUBackend) unary(op string, x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	requireFloat32(op, x)
	out := tensor.MustRaw(x.Shape(), tensor.Float32, cpu.device)
	dst := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		dst[i] = f(v)
	}
	return out
}
