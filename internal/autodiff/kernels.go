package autodiff

import (
	"math"

	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/tensor"
)

// raw abbreviates the kernel signatures below.
type raw = *tensor.RawTensor

func (b *AutodiffBackend[B]) Add(x, y raw) raw {
	out := b.inner.Add(x, y)
	return b.keep(out, ops.NewAddOp(x, y, out))
}

func (b *AutodiffBackend[B]) Sub(x, y raw) raw {
	out := b.inner.Sub(x, y)
	return b.keep(out, ops.NewSubOp(x, y, out))
}

func (b *AutodiffBackend[B]) Mul(x, y raw) raw {
	out := b.inner.Mul(x, y)
	return b.keep(out, ops.NewMulOp(x, y, out))
}

func (b *AutodiffBackend[B]) MulScalar(x raw, s float32) raw {
	out := b.inner.MulScalar(x, s)
	return b.keep(out, ops.NewMulScalarOp(x, out, s))
}

func (b *AutodiffBackend[B]) AddScalar(x raw, s float32) raw {
	out := b.inner.AddScalar(x, s)
	return b.keep(out, ops.NewAddScalarOp(x, out))
}

func (b *AutodiffBackend[B]) MatMul(x, y raw) raw {
	out := b.inner.MatMul(x, y)
	return b.keep(out, ops.NewMatMulOp(x, y, out))
}

func (b *AutodiffBackend[B]) Reshape(x raw, shape tensor.Shape) raw {
	out := b.inner.Reshape(x, shape)
	return b.keep(out, ops.NewReshapeOp(x, out))
}

// Transpose resolves the default reversed permutation before recording so
// the backward pass can invert it.
func (b *AutodiffBackend[B]) Transpose(x raw, axes ...int) raw {
	if len(axes) == 0 {
		n := len(x.Shape())
		for i := range n {
			axes = append(axes, n-1-i)
		}
	}
	out := b.inner.Transpose(x, axes...)
	return b.keep(out, ops.NewTransposeOp(x, out, axes))
}

func (b *AutodiffBackend[B]) Conv2D(input, kernel raw, stride, padding int) raw {
	out := b.inner.Conv2D(input, kernel, stride, padding)
	return b.keep(out, ops.NewConv2DOp(input, kernel, out, stride, padding))
}

func (b *AutodiffBackend[B]) MaxPool2D(input raw, kernelSize, stride int) raw {
	out := b.inner.MaxPool2D(input, kernelSize, stride)
	return b.keep(out, ops.NewMaxPool2DOp(input, out, kernelSize, stride))
}

func (b *AutodiffBackend[B]) Upsample2D(input raw, scale int) raw {
	out := b.inner.Upsample2D(input, scale)
	return b.keep(out, ops.NewUpsample2DOp(input, out, scale))
}

func (b *AutodiffBackend[B]) Cat(xs []raw, dim int) raw {
	out := b.inner.Cat(xs, dim)
	return b.keep(out, ops.NewCatOp(xs, tensor.NormalizeDim(dim, len(out.Shape())), out))
}

func (b *AutodiffBackend[B]) Narrow(x raw, dim, start, length int) raw {
	out := b.inner.Narrow(x, dim, start, length)
	return b.keep(out, ops.NewNarrowOp(x, out, tensor.NormalizeDim(dim, len(x.Shape())), start))
}

func (b *AutodiffBackend[B]) Expand(x raw, shape tensor.Shape) raw {
	out := b.inner.Expand(x, shape)
	return b.keep(out, ops.NewExpandOp(x, out))
}

func (b *AutodiffBackend[B]) Sum(x raw) raw {
	out := b.inner.Sum(x)
	return b.keep(out, ops.NewSumOp(x, out))
}

// The kernels below are adjoints used inside backward rules, or carry no
// gradient, and pass straight through without recording.

func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad raw, stride, padding int) raw {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad raw, stride, padding int) raw {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

func (b *AutodiffBackend[B]) MaxPool2DBackward(input, grad raw, kernelSize, stride int) raw {
	return b.inner.MaxPool2DBackward(input, grad, kernelSize, stride)
}

func (b *AutodiffBackend[B]) Upsample2DBackward(grad raw, scale int) raw {
	return b.inner.Upsample2DBackward(grad, scale)
}

func (b *AutodiffBackend[B]) SumTo(x raw, shape tensor.Shape) raw { return b.inner.SumTo(x, shape) }
func (b *AutodiffBackend[B]) Argmax(x raw, dim int) raw           { return b.inner.Argmax(x, dim) }

// ReLU and Sigmoid use the wrapped backend's kernel when it has one.

func (b *AutodiffBackend[B]) ReLU(x raw) raw {
	var out raw
	if k, ok := any(b.inner).(interface{ ReLU(raw) raw }); ok {
		out = k.ReLU(x)
	} else {
		out = apply(x, func(v float32) float32 { return max(v, 0) })
	}
	return b.keep(out, ops.NewReLUOp(x, out))
}

func (b *AutodiffBackend[B]) Sigmoid(x raw) raw {
	var out raw
	if k, ok := any(b.inner).(interface{ Sigmoid(raw) raw }); ok {
		out = k.Sigmoid(x)
	} else {
		out = apply(x, func(v float32) float32 { return float32(1 / (1 + math.Exp(-float64(v)))) })
	}
	return b.keep(out, ops.NewSigmoidOp(x, out))
}

// CrossEntropy is the batch mean of -log softmax(logits)[target] for int32
// targets. Its gradient is (softmax - onehot) / batch.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets raw) raw {
	out := ops.CrossEntropyForward(logits, targets, b.Device())
	return b.keep(out, ops.NewCrossEntropyOp(logits, targets, out))
}

// L1 is the mean absolute difference of x and y.
func (b *AutodiffBackend[B]) L1(x, y raw) raw {
	out := ops.L1Forward(x, y, b.Device())
	return b.keep(out, ops.NewL1Op(x, y, out))
}

func apply(x raw, f func(float32) float32) raw {
	out := tensor.MustRaw(x.Shape(), tensor.Float32, x.Device())
	dst := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		dst[i] = f(v)
	}
	return out
}
