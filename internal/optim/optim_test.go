package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/optim"
	"github.com/born-ml/dac/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func param(t *testing.T, backend Backend, name string, values ...float32) *nn.Parameter[Backend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return nn.NewParameter(name, x)
}

func gradsFor(t *testing.T, backend Backend, p *nn.Parameter[Backend], values ...float32) optim.Gradients {
	t.Helper()
	g, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return optim.Gradients{p.Tensor().Raw(): g.Raw()}
}

func TestSGD(t *testing.T) {
	backend := autodiff.New(cpu.New())

	t.Run("plain", func(t *testing.T) {
		x := param(t, backend, "x", 2)
		opt := optim.NewSGD([]*nn.Parameter[Backend]{x}, optim.SGDConfig{LR: 0.1}, backend)
		opt.Step(gradsFor(t, backend, x, 1))
		assert.InDelta(t, 1.9, x.Tensor().Data()[0], 1e-6)
	})

	t.Run("momentum", func(t *testing.T) {
		x := param(t, backend, "x", 1)
		opt := optim.NewSGD([]*nn.Parameter[Backend]{x}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
		grads := gradsFor(t, backend, x, 1)

		opt.Step(grads) // v=1.0
		assert.InDelta(t, 0.9, x.Tensor().Data()[0], 1e-6)
		opt.Step(grads) // v=1.9
		assert.InDelta(t, 0.71, x.Tensor().Data()[0], 1e-5)
	})

	t.Run("learning rate", func(t *testing.T) {
		x := param(t, backend, "x", 1)
		opt := optim.NewSGD([]*nn.Parameter[Backend]{x}, optim.SGDConfig{}, backend)
		assert.Equal(t, float32(0.01), opt.GetLR())
		opt.SetLR(0.001)
		assert.Equal(t, float32(0.001), opt.GetLR())
	})

	t.Run("several parameters", func(t *testing.T) {
		a := param(t, backend, "a", 1, 2)
		b := param(t, backend, "b", 3)
		grads := gradsFor(t, backend, a, 1, 2)
		for k, v := range gradsFor(t, backend, b, 0.5) {
			grads[k] = v
		}
		optim.NewSGD([]*nn.Parameter[Backend]{a, b}, optim.SGDConfig{LR: 0.1}, backend).Step(grads)
		assert.InDeltaSlice(t, []float32{0.9, 1.8}, a.Tensor().Data(), 1e-6)
		assert.InDelta(t, 2.95, b.Tensor().Data()[0], 1e-6)
	})
}

func TestAdam(t *testing.T) {
	backend := autodiff.New(cpu.New())

	t.Run("first step", func(t *testing.T) {
		// Bias correction makes m_hat = v_hat = 1 after one step with g = 1.
		x := param(t, backend, "x", 1)
		opt := optim.NewAdam([]*nn.Parameter[Backend]{x}, optim.AdamConfig{LR: 0.001}, backend)
		opt.Step(gradsFor(t, backend, x, 1))
		assert.InDelta(t, 0.999, x.Tensor().Data()[0], 1e-5)
	})

	t.Run("timestep", func(t *testing.T) {
		x := param(t, backend, "x", 1)
		opt := optim.NewAdam([]*nn.Parameter[Backend]{x}, optim.AdamConfig{LR: 0.01}, backend)
		assert.Zero(t, opt.GetTimestep())
		grads := gradsFor(t, backend, x, 1)
		for i := 1; i <= 3; i++ {
			opt.Step(grads)
			assert.Equal(t, i, opt.GetTimestep())
		}
		assert.Less(t, x.Tensor().Data()[0], float32(1))

		opt.Step(optim.Gradients{})
		assert.Equal(t, 4, opt.GetTimestep(), "timestep advances without gradients")
	})
}

func TestZeroGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	for name, build := range map[string]func(p []*nn.Parameter[Backend]) optim.Optimizer{
		"sgd":  func(p []*nn.Parameter[Backend]) optim.Optimizer { return optim.NewSGD(p, optim.SGDConfig{}, backend) },
		"adam": func(p []*nn.Parameter[Backend]) optim.Optimizer { return optim.NewAdam(p, optim.AdamConfig{}, backend) },
	} {
		t.Run(name, func(t *testing.T) {
			x := param(t, backend, "x", 1)
			g, _ := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
			x.SetGrad(g)
			build([]*nn.Parameter[Backend]{x}).ZeroGrad()
			assert.Nil(t, x.Grad())
		})
	}
}

// Both optimizers drive f(x) = x^2 from x = 3 towards its minimum.
func TestConvergence_Quadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	cases := []struct {
		name  string
		build func(p []*nn.Parameter[Backend]) optim.Optimizer
	}{
		{"sgd", func(p []*nn.Parameter[Backend]) optim.Optimizer {
			return optim.NewSGD(p, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
		}},
		{"adam", func(p []*nn.Parameter[Backend]) optim.Optimizer {
			return optim.NewAdam(p, optim.AdamConfig{LR: 0.1}, backend)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x := param(t, backend, "x", 3)
			opt := tc.build([]*nn.Parameter[Backend]{x})
			for range 100 {
				opt.Step(gradsFor(t, backend, x, 2*x.Tensor().Data()[0]))
			}
			assert.InDelta(t, 0, x.Tensor().Data()[0], 0.1)
		})
	}
}

func TestStep_LeavesGradientsUntouched(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := param(t, backend, "x", 1, -1)
	grads := gradsFor(t, backend, x, 0.5, -0.25)

	for _, opt := range []optim.Optimizer{
		optim.NewSGD([]*nn.Parameter[Backend]{x}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend),
		optim.NewAdam([]*nn.Parameter[Backend]{x}, optim.AdamConfig{LR: 0.1}, backend),
	} {
		opt.Step(grads)
		opt.Step(grads)
	}

	assert.Equal(t, []float32{0.5, -0.25}, grads[x.Tensor().Raw()].AsFloat32())
	assert.NotNil(t, x.Grad(), "step attaches the gradient")
}

// A generator optimizer must skip discriminator gradients in a shared map.
func TestStep_OnlyOwnParameterGroup(t *testing.T) {
	backend := autodiff.New(cpu.New())
	gen := param(t, backend, "gen", 1)
	disc := param(t, backend, "disc", 2)

	_, grads := autodiff.ValueAndGrad(backend, func() *tensor.Tensor[float32, Backend] {
		return gen.Tensor().Mul(disc.Tensor()).Sum()
	})
	require.Contains(t, grads, disc.Tensor().Raw())

	opt := optim.NewAdam([]*nn.Parameter[Backend]{gen}, optim.AdamConfig{LR: 0.1}, backend)
	opt.Step(grads)

	assert.NotEqual(t, float32(1), gen.Tensor().Data()[0])
	assert.Equal(t, float32(2), disc.Tensor().Data()[0])
	assert.Len(t, opt.Params(), 1)
}

func TestStep_ShapeMismatchPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := param(t, backend, "x", 1, 2)
	bad := tensor.MustRaw(tensor.Shape{3}, tensor.Float32, backend.Device())

	opt := optim.NewSGD([]*nn.Parameter[Backend]{x}, optim.SGDConfig{}, backend)
	assert.Panics(t, func() { opt.Step(optim.Gradients{x.Tensor().Raw(): bad}) })
}
