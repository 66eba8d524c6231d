package cpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/dac/internal/tensor"
)

func raw(t *testing.T, data []float32, shape ...int) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.RawFromFloat32(data, tensor.Shape(shape), tensor.CPU)
	require.NoError(t, err)
	return r
}

func randRaw(rng *rand.Rand, shape ...int) *tensor.RawTensor {
	r := tensor.MustRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestCPUBackend_Add(t *testing.T) {
	backend := New()

	t.Run("SameShape", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
		b := raw(t, []float32{10, 11, 12, 13, 14, 15}, 2, 3)
		out := backend.Add(a, b)
		assert.Equal(t, []float32{11, 13, 15, 17, 19, 21}, out.AsFloat32())
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, a.AsFloat32(), "inputs must not be modified")
	})

	t.Run("Broadcast", func(t *testing.T) {
		a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
		b := raw(t, []float32{10, 20, 30}, 3)
		out := backend.Add(a, b)
		assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
		assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
	})

	t.Run("Incompatible", func(t *testing.T) {
		a := raw(t, make([]float32, 6), 2, 3)
		b := raw(t, make([]float32, 4), 4)
		assert.Panics(t, func() { backend.Add(a, b) })
	})
}

func TestCPUBackend_SubMulScalar(t *testing.T) {
	backend := New()
	a := raw(t, []float32{4, 6}, 2)
	b := raw(t, []float32{1, 2}, 2)

	assert.Equal(t, []float32{3, 4}, backend.Sub(a, b).AsFloat32())
	assert.Equal(t, []float32{4, 12}, backend.Mul(a, b).AsFloat32())
	assert.Equal(t, []float32{2, 3}, backend.MulScalar(a, 0.5).AsFloat32())
	assert.Equal(t, []float32{5, 7}, backend.AddScalar(a, 1).AsFloat32())
}

func TestCPUBackend_MatMul(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := raw(t, []float32{7, 8, 9, 10, 11, 12}, 3, 2)

	out := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestCPUBackend_Transpose(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	out := backend.Transpose(a)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())

	x := randRaw(rand.New(rand.NewSource(1)), 2, 3, 4)
	p := backend.Transpose(x, 2, 0, 1)
	assert.Equal(t, tensor.Shape{4, 2, 3}, p.Shape())
	// p[k, i, j] == x[i, j, k]
	assert.Equal(t, x.AsFloat32()[1*12+2*4+3], p.AsFloat32()[3*6+1*3+2])
}

func TestCPUBackend_Conv2D(t *testing.T) {
	backend := New()

	// 1x1x3x3 input, 1x1x2x2 kernel of ones: each output is a 2x2 window sum.
	input := raw(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	kernel := raw(t, []float32{1, 1, 1, 1}, 1, 1, 2, 2)

	out := backend.Conv2D(input, kernel, 1, 0)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{12, 16, 24, 28}, out.AsFloat32())

	// Same padding keeps the spatial size.
	k3 := raw(t, make([]float32, 9), 1, 1, 3, 3)
	k3.AsFloat32()[4] = 1 // identity kernel
	same := backend.Conv2D(input, k3, 1, 1)
	assert.Equal(t, input.AsFloat32(), same.AsFloat32())
}

func TestCPUBackend_Conv2DMultiChannel(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(7))
	input := randRaw(rng, 2, 3, 4, 5)
	kernel := randRaw(rng, 4, 3, 3, 3)

	out := backend.Conv2D(input, kernel, 1, 1)
	require.Equal(t, tensor.Shape{2, 4, 4, 5}, out.Shape())

	// Direct evaluation of one output position.
	n, co, oh, ow := 1, 2, 0, 3
	var want float32
	for c := 0; c < 3; c++ {
		for kh := 0; kh < 3; kh++ {
			for kw := 0; kw < 3; kw++ {
				h, w := oh-1+kh, ow-1+kw
				if h < 0 || h >= 4 || w < 0 || w >= 5 {
					continue
				}
				want += input.AsFloat32()[((n*3+c)*4+h)*5+w] * kernel.AsFloat32()[((co*3+c)*3+kh)*3+kw]
			}
		}
	}
	assert.InDelta(t, want, out.AsFloat32()[((n*4+co)*4+oh)*5+ow], 1e-4)
}

// numericGrad estimates d(sum(out * weight)) / d(param) with central differences.
func numericGrad(param *tensor.RawTensor, f func() *tensor.RawTensor, weight []float32) []float64 {
	data := param.AsFloat32()
	x := make([]float64, len(data))
	for i, v := range data {
		x[i] = float64(v)
	}
	objective := func(p []float64) float64 {
		for i, v := range p {
			data[i] = float32(v)
		}
		var s float64
		for i, v := range f().AsFloat32() {
			s += float64(v * weight[i])
		}
		return s
	}
	grad := make([]float64, len(x))
	fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central, Step: 1e-2})
	for i, v := range x {
		data[i] = float32(v)
	}
	return grad
}

func TestCPUBackend_Conv2DBackward(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(3))
	input := randRaw(rng, 2, 2, 4, 4)
	kernel := randRaw(rng, 3, 2, 3, 3)
	forward := func() *tensor.RawTensor { return backend.Conv2D(input, kernel, 1, 1) }
	grad := randRaw(rng, forward().Shape()...)

	dInput := backend.Conv2DInputBackward(input, kernel, grad, 1, 1)
	dKernel := backend.Conv2DKernelBackward(input, kernel, grad, 1, 1)
	require.Equal(t, input.Shape(), dInput.Shape())
	require.Equal(t, kernel.Shape(), dKernel.Shape())

	wantInput := numericGrad(input, forward, grad.AsFloat32())
	for i, v := range dInput.AsFloat32() {
		assert.InDelta(t, wantInput[i], v, 1e-2, "input grad %d", i)
	}
	wantKernel := numericGrad(kernel, forward, grad.AsFloat32())
	for i, v := range dKernel.AsFloat32() {
		assert.InDelta(t, wantKernel[i], v, 1e-2, "kernel grad %d", i)
	}
}

func TestCPUBackend_MaxPool2D(t *testing.T) {
	backend := New()
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := raw(t, data, 1, 1, 4, 4)

	out := backend.MaxPool2D(input, 2, 2)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{6, 8, 14, 16}, out.AsFloat32())

	grad := raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)
	dIn := backend.MaxPool2DBackward(input, grad, 2, 2)
	want := make([]float32, 16)
	want[5], want[7], want[13], want[15] = 1, 2, 3, 4
	assert.Equal(t, want, dIn.AsFloat32())
}

func TestCPUBackend_Upsample2D(t *testing.T) {
	backend := New()
	input := raw(t, []float32{1, 2, 3, 4}, 1, 1, 2, 2)

	out := backend.Upsample2D(input, 2)
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, out.Shape())
	assert.Equal(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, out.AsFloat32())

	ones := raw(t, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, 1, 1, 4, 4)
	back := backend.Upsample2DBackward(ones, 2)
	assert.Equal(t, []float32{4, 4, 4, 4}, back.AsFloat32())
}

func TestCPUBackend_CatNarrow(t *testing.T) {
	backend := New()
	a := raw(t, []float32{1, 2, 3, 4}, 2, 2)
	b := raw(t, []float32{5, 6}, 2, 1)

	c := backend.Cat([]*tensor.RawTensor{a, b}, -1)
	assert.Equal(t, tensor.Shape{2, 3}, c.Shape())
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, c.AsFloat32())

	assert.Equal(t, a.AsFloat32(), backend.Narrow(c, 1, 0, 2).AsFloat32())
	assert.Equal(t, b.AsFloat32(), backend.Narrow(c, 1, 2, 1).AsFloat32())
	assert.Panics(t, func() { backend.Narrow(c, 1, 2, 2) })
}

func TestCPUBackend_ExpandSumTo(t *testing.T) {
	backend := New()
	s := raw(t, []float32{1, 2}, 1, 2, 1, 1)

	e := backend.Expand(s, tensor.Shape{3, 2, 2, 2})
	assert.Equal(t, tensor.Shape{3, 2, 2, 2}, e.Shape())
	assert.Equal(t, float32(1), e.AsFloat32()[0])
	assert.Equal(t, float32(2), e.AsFloat32()[4])

	back := backend.SumTo(e, s.Shape())
	assert.Equal(t, []float32{12, 24}, back.AsFloat32())

	assert.Panics(t, func() { backend.Expand(s, tensor.Shape{3, 3, 2, 2}) })
}

func TestCPUBackend_Reduce(t *testing.T) {
	backend := New()
	x := raw(t, []float32{0.1, 0.7, 0.2, 0.9, 0.05, 0.05}, 2, 3)

	assert.InDelta(t, 2.0, backend.Sum(x).AsFloat32()[0], 1e-6)

	am := backend.Argmax(x, 1)
	assert.Equal(t, tensor.Int32, am.DType())
	assert.Equal(t, tensor.Shape{2}, am.Shape())
	assert.Equal(t, []int32{1, 0}, am.AsInt32())
}

func TestCPUBackend_Activations(t *testing.T) {
	backend := New()
	x := raw(t, []float32{-1, 0, 2}, 3)

	assert.Equal(t, []float32{0, 0, 2}, backend.ReLU(x).AsFloat32())
	assert.InDelta(t, 0.5, backend.Sigmoid(x).AsFloat32()[1], 1e-6)

	sm := backend.Softmax(raw(t, []float32{1, 1, 1, 1000, 0, 0}, 2, 3), 1).AsFloat32()
	assert.InDelta(t, 1.0/3, sm[0], 1e-6)
	assert.InDelta(t, 1.0, sm[3], 1e-6)
	assert.InDelta(t, 0.0, sm[4], 1e-6)
}
