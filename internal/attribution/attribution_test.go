package attribution_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dac/internal/attribution"
	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

var allMethods = []attribution.Method{
	attribution.GaussLegendre,
	attribution.RiemannLeft,
	attribution.RiemannRight,
	attribution.RiemannMiddle,
	attribution.RiemannTrapezoid,
}

func TestMethodPoints(t *testing.T) {
	for _, m := range allMethods {
		t.Run(m.String(), func(t *testing.T) {
			alphas, weights, err := m.Points(8)
			require.NoError(t, err)
			require.Len(t, alphas, 8)

			var sum float64
			for k := range weights {
				sum += weights[k]
				assert.GreaterOrEqual(t, alphas[k], 0.0)
				assert.LessOrEqual(t, alphas[k], 1.0)
			}
			assert.InDelta(t, 1.0, sum, 1e-12)

			// Every rule integrates f(a) = a exactly.
			var moment float64
			for k := range alphas {
				moment += weights[k] * alphas[k]
			}
			if m == attribution.RiemannLeft || m == attribution.RiemannRight {
				assert.InDelta(t, 0.5, moment, 1.0/16+1e-12)
			} else {
				assert.InDelta(t, 0.5, moment, 1e-12)
			}
		})
	}

	alphas, _, _ := attribution.RiemannLeft.Points(4)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, alphas)
	alphas, _, _ = attribution.RiemannRight.Points(4)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, alphas)
	alphas, weights, _ := attribution.RiemannTrapezoid.Points(3)
	assert.Equal(t, []float64{0, 0.5, 1}, alphas)
	assert.Equal(t, []float64{0.25, 0.5, 0.25}, weights)

	_, _, err := attribution.RiemannTrapezoid.Points(1)
	assert.Error(t, err)
	_, _, err = attribution.GaussLegendre.Points(0)
	assert.Error(t, err)
	_, _, err = attribution.Method(42).Points(4)
	assert.ErrorIs(t, err, attribution.ErrUnknownMethod)
}

func TestParse(t *testing.T) {
	for _, m := range allMethods {
		got, err := attribution.ParseMethod(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := attribution.ParseMethod("simpson")
	assert.ErrorIs(t, err, attribution.ErrUnknownMethod)

	k, err := attribution.ParseBaseline(" Blur ")
	require.NoError(t, err)
	assert.Equal(t, attribution.BlurBaseline, k)
	_, err = attribution.ParseBaseline("median")
	assert.ErrorIs(t, err, attribution.ErrUnknownMethod)
}

// For a linear model integrated gradients is exact: attr = (x - x0) * w_t.
func TestAttribute_Linear(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer := nn.NewLinear(3, 2, rand.New(rand.NewSource(1)), backend)
	w := layer.Weight().Tensor().Data()
	copy(w, []float32{1, -2, 3, 0.5, 0.5, 0.5})

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	x0 := attribution.Zero(x)

	for _, m := range allMethods {
		ig, err := attribution.NewIntegratedGradients[Backend](layer, backend, attribution.WithMethod(m), attribution.WithSteps(10))
		require.NoError(t, err)
		attr, err := ig.Attribute(x, []int{0, 1}, x0)
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{1, -4, 9, 2, 2.5, 3}, attr.Data(), 1e-5, m.String())
	}
}

// Completeness: the attributions sum to F_t(x) - F_t(x0).
func TestAttribute_Completeness(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))
	m, err := model.NewDenseModel([3]int{3, 4, 4}, 2, []int{16}, rng, backend)
	require.NoError(t, err)

	x := tensor.Rand(tensor.Shape{2, 3, 4, 4}, rng, backend)
	x0 := attribution.Uniform(x, rng)
	targets := []int{1, 0}

	ig, err := attribution.NewIntegratedGradients[Backend](m, backend, attribution.WithSteps(200))
	require.NoError(t, err)
	before := nn.Snapshot(m.Parameters())
	attr, err := ig.Attribute(x, targets, x0)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), attr.Shape())
	assert.Equal(t, before, nn.Snapshot(m.Parameters()), "classifier stays frozen")
	assert.Equal(t, 0, backend.Tape().NumOps())

	var fx, f0 *tensor.Tensor[float32, Backend]
	autodiff.NoGrad(backend, func() {
		fx = m.Forward(x)
		f0 = m.Forward(x0)
	})
	row := 3 * 4 * 4
	for i, target := range targets {
		var sum float64
		for _, v := range attr.Data()[i*row : (i+1)*row] {
			sum += float64(v)
		}
		want := float64(fx.At(i, target) - f0.At(i, target))
		assert.InDelta(t, want, sum, 0.02*math.Max(1, math.Abs(want)), "row %d", i)
	}
}

func TestAttribute_Errors(t *testing.T) {
	backend := autodiff.New(cpu.New())
	m, err := model.NewDenseModel([3]int{1, 2, 2}, 2, []int{4}, rand.New(rand.NewSource(1)), backend)
	require.NoError(t, err)
	ig, err := attribution.NewIntegratedGradients[Backend](m, backend)
	require.NoError(t, err)
	assert.Equal(t, attribution.DefaultSteps, ig.Steps())
	assert.Equal(t, attribution.GaussLegendre, ig.Method())

	x := tensor.Ones[float32](tensor.Shape{2, 1, 2, 2}, backend)

	_, err = ig.Attribute(x, []int{0, 1}, tensor.Zeros[float32](tensor.Shape{1, 1, 2, 2}, backend))
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
	_, err = ig.Attribute(x, []int{0}, attribution.Zero(x))
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
	_, err = ig.Attribute(x, []int{0, 2}, attribution.Zero(x))
	assert.Error(t, err)

	_, err = attribution.NewIntegratedGradients[Backend](m, backend, attribution.WithSteps(0))
	assert.Error(t, err)
}

func TestBaselines(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(2))
	x := tensor.Full[float32](tensor.Shape{1, 3, 6, 6}, 0.25, backend)

	zero, err := attribution.Baseline(attribution.ZeroBaseline, x, nil)
	require.NoError(t, err)
	for _, v := range zero.Data() {
		assert.Zero(t, v)
	}

	noise, err := attribution.Baseline(attribution.UniformBaseline, x, rng)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), noise.Shape())
	for _, v := range noise.Data() {
		assert.True(t, v >= 0 && v < 1)
	}
	_, err = attribution.Baseline(attribution.UniformBaseline, x, nil)
	assert.Error(t, err)

	blurred, err := attribution.Baseline(attribution.BlurBaseline, x, nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, x.Data(), blurred.Data(), 1e-6, "a constant image is a fixed point")

	_, err = attribution.Baseline(attribution.CounterfactualBaseline, x, nil)
	assert.Error(t, err)
}

func TestBlur(t *testing.T) {
	backend := cpu.New()
	assert.InDelta(t, 1.1, attribution.BlurSigma(5), 1e-12)

	impulse := tensor.Zeros[float32](tensor.Shape{1, 1, 9, 9}, backend)
	impulse.Data()[4*9+4] = 1

	out, err := attribution.Blur(impulse, 5, 0)
	require.NoError(t, err)
	var sum float32
	for _, v := range out.Data() {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-5)
	assert.Less(t, out.At(0, 0, 4, 4), float32(1))
	assert.Equal(t, out.At(0, 0, 4, 2), out.At(0, 0, 4, 6), "symmetric")
	assert.Equal(t, out.At(0, 0, 2, 4), out.At(0, 0, 4, 2), "isotropic")
	assert.Zero(t, out.At(0, 0, 0, 0))

	// Images smaller than the kernel still reflect inside the bounds.
	small := tensor.Ones[float32](tensor.Shape{1, 1, 2, 1}, backend)
	out, err = attribution.Blur(small, 5, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{1, 1}, out.Data(), 1e-6)

	_, err = attribution.Blur(impulse, 4, 0)
	assert.Error(t, err)
	_, err = attribution.Blur(tensor.Ones[float32](tensor.Shape{9, 9}, backend), 5, 0)
	assert.Error(t, err)
}
