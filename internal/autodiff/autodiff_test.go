package autodiff_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type T = tensor.Tensor[float32, Backend]

func randn(rng *rand.Rand, backend Backend, shape ...int) *T {
	return tensor.Randn(tensor.Shape(shape), rng, backend)
}

// checkGradients compares tape gradients of the scalar f() with central differences
// for every tensor in inputs.
func checkGradients(t *testing.T, backend Backend, inputs []*T, f func() *T, tol float64) {
	t.Helper()

	tape := backend.Tape()
	tape.Clear()
	tape.StartRecording()
	out := f()
	require.Equal(t, 1, out.NumElements(), "objective must be scalar")
	grads := autodiff.Backward(out, backend)
	tape.StopRecording()
	tape.Clear()

	for k, in := range inputs {
		data := in.Data()
		x := make([]float64, len(data))
		for i, v := range data {
			x[i] = float64(v)
		}
		objective := func(p []float64) float64 {
			for i, v := range p {
				data[i] = float32(v)
			}
			return float64(f().Item())
		}
		want := fd.Gradient(nil, objective, x, &fd.Settings{Formula: fd.Central, Step: 1e-2})
		for i, v := range x {
			data[i] = float32(v)
		}

		got, ok := grads[in.Raw()]
		require.True(t, ok, "input %d received no gradient", k)
		require.Equal(t, in.Shape(), got.Shape())
		for i, g := range got.AsFloat32() {
			assert.InDelta(t, want[i], g, tol, "input %d element %d", k, i)
		}
	}
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{2, -3}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	y := x.Mul(x).Sum()

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float32{4, -6}, grads[x.Raw()].AsFloat32())
	assert.Equal(t, float32(13), y.Item())
}

func TestBackward_PanicsWithoutRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Ones[float32](tensor.Shape{2}, backend)
	assert.Panics(t, func() { autodiff.Backward(x.Sum(), backend) })
}

func TestTape_ClearAndStop(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	x := tensor.Ones[float32](tensor.Shape{2}, backend)
	x.Add(x)
	assert.Equal(t, 0, tape.NumOps(), "nothing recorded while stopped")

	tape.StartRecording()
	x.Add(x)
	x.MulScalar(3)
	assert.Equal(t, 2, tape.NumOps())
	assert.True(t, tape.IsRecording())

	tape.Clear()
	assert.Equal(t, 0, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear keeps the recording state")
}

func TestBackward_UnrelatedTensorsGetNoGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a := tensor.Ones[float32](tensor.Shape{2}, backend)
	b := tensor.Ones[float32](tensor.Shape{2}, backend)
	lossA := a.MulScalar(2).Sum()
	_ = b.MulScalar(5).Sum()

	grads := autodiff.Backward(lossA, backend)
	assert.Equal(t, []float32{2, 2}, grads[a.Raw()].AsFloat32())
	_, ok := grads[b.Raw()]
	assert.False(t, ok)
}

func TestGradients_Arithmetic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(1))
	a := randn(rng, backend, 3, 4)
	b := randn(rng, backend, 4)    // broadcast along dim 0
	c := randn(rng, backend, 3, 1) // broadcast along dim 1

	checkGradients(t, backend, []*T{a, b, c}, func() *T {
		return a.Add(b).Mul(c).Sub(a.Mul(a).MulScalar(0.5)).AddScalar(1).Sum()
	}, 1e-2)
}

func TestGradients_MatMulTranspose(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(2))
	a := randn(rng, backend, 2, 3)
	w := randn(rng, backend, 4, 3)
	g := randn(rng, backend, 2, 4)

	checkGradients(t, backend, []*T{a, w}, func() *T {
		return a.MatMul(w.T()).Mul(g).Sum()
	}, 1e-2)
}

func TestGradients_Conv2DUpsample(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))
	x := randn(rng, backend, 2, 2, 4, 4)
	k := randn(rng, backend, 3, 2, 3, 3)
	g := randn(rng, backend, 2, 3, 8, 8)

	checkGradients(t, backend, []*T{x, k}, func() *T {
		h := tensor.New[float32, Backend](backend.Conv2D(x.Raw(), k.Raw(), 1, 1), backend)
		u := tensor.New[float32, Backend](backend.Upsample2D(h.Raw(), 2), backend)
		return u.Mul(g).Sum()
	}, 2e-2)
}

func TestGradients_MaxPool(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{
		1, 5, 2, 0,
		3, 4, 8, 1,
		0, 0, 1, 1,
		9, 0, 1, 2,
	}, tensor.Shape{1, 1, 4, 4}, backend)
	g, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)

	p := tensor.New[float32, Backend](backend.MaxPool2D(x.Raw(), 2, 2), backend)
	assert.Equal(t, []float32{5, 8, 9, 2}, p.Data())

	grads := autodiff.Backward(p.Mul(g).Sum(), backend)
	assert.Equal(t, []float32{
		0, 1, 0, 0,
		0, 0, 2, 0,
		0, 0, 0, 0,
		3, 0, 0, 4,
	}, grads[x.Raw()].AsFloat32())
}

func TestGradients_Activations(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(4))
	// Keep inputs away from the ReLU kink at 0.
	x, _ := tensor.FromSlice([]float32{
		-2.1, -1.3, -0.6, -0.25, 0.3,
		0.7, 1.2, 1.9, -0.9, 2.4,
		-1.7, 0.45, -0.35, 1.05, -2.8,
	}, tensor.Shape{3, 5}, backend)
	g := randn(rng, backend, 3, 5)

	checkGradients(t, backend, []*T{x}, func() *T {
		r := tensor.New[float32, Backend](backend.ReLU(x.Raw()), backend)
		s := tensor.New[float32, Backend](backend.Sigmoid(x.Raw()), backend)
		return r.Add(s).Mul(g).Sum()
	}, 1e-2)
}

func TestGradients_CatExpandNarrow(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(5))
	x := randn(rng, backend, 2, 3, 2, 2)
	s := randn(rng, backend, 2, 3)
	g := randn(rng, backend, 2, 5, 2, 2)

	checkGradients(t, backend, []*T{x, s}, func() *T {
		styleMap := tensor.Expand(s.Reshape(2, 3, 1, 1), tensor.Shape{2, 3, 2, 2})
		xs := tensor.Cat([]*T{x, styleMap}, 1)
		return xs.Narrow(1, 1, 5).Mul(g).Sum()
	}, 1e-2)
}

func TestGradients_CrossEntropy(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(6))
	logits := randn(rng, backend, 4, 3)
	targets, err := tensor.FromSlice([]int32{0, 2, 1, 2}, tensor.Shape{4}, backend)
	require.NoError(t, err)

	checkGradients(t, backend, []*T{logits}, func() *T {
		return tensor.New[float32, Backend](backend.CrossEntropy(logits.Raw(), targets.Raw()), backend)
	}, 1e-3)
}

func TestCrossEntropy_Value(t *testing.T) {
	backend := autodiff.New(cpu.New())
	logits, _ := tensor.FromSlice([]float32{0, 0, 100, 0}, tensor.Shape{2, 2}, backend)
	targets, _ := tensor.FromSlice([]int32{0, 0}, tensor.Shape{2}, backend)

	loss := backend.CrossEntropy(logits.Raw(), targets.Raw()).AsFloat32()[0]
	// Sample 0: uniform → ln 2; sample 1: confident → ~0.
	assert.InDelta(t, 0.6931/2, loss, 1e-3)
}

func TestGradients_L1(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(7))
	a := randn(rng, backend, 2, 3, 2, 2)
	// b differs from a by at least 0.2 everywhere, away from the |a-b| kink.
	b := a.Clone()
	for i := range b.Data() {
		off := float32(0.2 + rng.Float64())
		if i%2 == 0 {
			off = -off
		}
		b.Data()[i] += off
	}

	checkGradients(t, backend, []*T{a, b}, func() *T {
		return tensor.New[float32, Backend](backend.L1(a.Raw(), b.Raw()), backend)
	}, 1e-3)

	loss := backend.L1(a.Raw(), a.Raw()).AsFloat32()[0]
	assert.Equal(t, float32(0), loss)
}

func TestDetach_StopsGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	h := x.MulScalar(3)
	loss := h.Detach().Mul(h).Sum() // only the non-detached branch carries gradient

	grads := autodiff.Backward(loss, backend)
	// d/dx [(3x)_const * 3x] = 3 * (3x)_const
	assert.Equal(t, []float32{9, 18}, grads[x.Raw()].AsFloat32())
}

func TestSoftmax(t *testing.T) {
	p := ops.Softmax([]float32{1, 1})
	assert.InDelta(t, 0.5, p[0], 1e-6)

	p = ops.Softmax([]float32{0, 1, 1000})
	assert.InDelta(t, 1.0, p[0]+p[1]+p[2], 1e-6)
	assert.InDelta(t, 1.0, p[2], 1e-6, "large logits stay finite")

	p = ops.Softmax([]float32{0, 1, 2})
	assert.Greater(t, p[2], p[1])
	assert.Greater(t, p[1], p[0])
}

func TestValueAndGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)

	loss, grads := autodiff.ValueAndGrad(backend, func() *T {
		return x.Mul(x).Sum()
	})
	assert.Equal(t, float32(14), loss.Item())
	assert.Equal(t, []float32{2, 4, 6}, grads[x.Raw()].AsFloat32())
	assert.Equal(t, 0, backend.Tape().NumOps(), "tape cleared after the pass")
	assert.False(t, backend.Tape().IsRecording(), "recording state restored")

	// Two passes never share a graph.
	_, grads2 := autodiff.ValueAndGrad(backend, func() *T {
		return x.MulScalar(5).Sum()
	})
	assert.Equal(t, []float32{5, 5, 5}, grads2[x.Raw()].AsFloat32())
}

func TestNoGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	x := tensor.Ones[float32](tensor.Shape{2}, backend)

	autodiff.NoGrad(backend, func() {
		x.Add(x)
	})
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording())

	ran := false
	autodiff.NoGrad(cpu.New(), func() { ran = true })
	assert.True(t, ran)
}
