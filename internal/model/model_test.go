package model_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type T = tensor.Tensor[float32, Backend]

func newGenerator(t *testing.T, rng *rand.Rand, backend Backend, depth int) *model.Generator[Backend] {
	t.Helper()
	style, err := model.NewDenseModel([3]int{3, 8, 8}, 3, []int{16}, rng, backend)
	require.NoError(t, err)
	unet, err := model.NewUNet(model.UNetConfig{Depth: depth, InChannels: 6, OutChannels: 3, NumFmaps: 4}, rng, backend)
	require.NoError(t, err)
	gen, err := model.NewGenerator(unet, style)
	require.NoError(t, err)
	return gen
}

func TestDenseModel(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(1))

	m, err := model.NewDenseModel([3]int{3, 4, 4}, 4, nil, rng, backend)
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumClasses())
	assert.Len(t, m.Parameters(), 6)
	assert.Equal(t, 48*120+120+120*84+84+84*4+4, nn.ParameterCount(m.Parameters()))

	logits := m.Forward(tensor.Randn(tensor.Shape{5, 3, 4, 4}, rng, backend))
	assert.Equal(t, tensor.Shape{5, 4}, logits.Shape())

	assert.Panics(t, func() { m.Forward(tensor.Randn(tensor.Shape{5, 1, 4, 4}, rng, backend)) })

	_, err = model.NewDenseModel([3]int{3, 4, 4}, 0, nil, rng, backend)
	assert.Error(t, err)
	_, err = model.NewDenseModel([3]int{3, 4, 4}, 2, []int{0}, rng, backend)
	assert.Error(t, err)
}

func TestUNet_Shapes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(2))

	for depth := 1; depth <= 3; depth++ {
		unet, err := model.NewUNet(model.UNetConfig{Depth: depth, InChannels: 2, OutChannels: 1, NumFmaps: 2}, rng, backend)
		require.NoError(t, err)

		y := unet.Forward(tensor.Rand(tensor.Shape{2, 2, 8, 8}, rng, backend))
		assert.Equal(t, tensor.Shape{2, 1, 8, 8}, y.Shape(), "depth %d", depth)
		for _, v := range y.Data() {
			assert.True(t, v > 0 && v < 1, "sigmoid output")
		}
	}

	unet, err := model.NewUNet(model.UNetConfig{Depth: 3, InChannels: 2, OutChannels: 1, NumFmaps: 2}, rng, backend)
	require.NoError(t, err)
	assert.ErrorIs(t, unet.CheckSpatial(6, 8), model.ErrShapeMismatch)
	assert.Panics(t, func() { unet.Forward(tensor.Rand(tensor.Shape{1, 2, 6, 6}, rng, backend)) })

	_, err = model.NewUNet(model.UNetConfig{Depth: 0, InChannels: 2, OutChannels: 1, NumFmaps: 2}, rng, backend)
	assert.Error(t, err)
}

func TestGenerator_PreservesShape(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(3))
	gen := newGenerator(t, rng, backend, 2)

	for _, n := range []int{1, 4} {
		x := tensor.Rand(tensor.Shape{n, 3, 8, 8}, rng, backend)
		s := tensor.Rand(tensor.Shape{n, 3, 8, 8}, rng, backend)
		y, err := gen.Generate(x, s)
		require.NoError(t, err)
		assert.Equal(t, x.Shape(), y.Shape())
	}
}

func TestGenerator_ShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(4))
	gen := newGenerator(t, rng, backend, 2)

	x := tensor.Rand(tensor.Shape{2, 3, 8, 8}, rng, backend)
	cases := map[string]*T{
		"batch":   tensor.Rand(tensor.Shape{3, 3, 8, 8}, rng, backend),
		"spatial": tensor.Rand(tensor.Shape{2, 3, 4, 4}, rng, backend),
	}
	for name, style := range cases {
		_, err := gen.Generate(x, style)
		assert.ErrorIs(t, err, model.ErrShapeMismatch, name)
	}

	small := tensor.Rand(tensor.Shape{2, 3, 4, 4}, rng, backend)
	_, err := gen.Generate(small, small)
	assert.ErrorIs(t, err, model.ErrShapeMismatch, "not the configured image shape")

	style, _ := model.NewDenseModel([3]int{3, 8, 8}, 2, nil, rng, backend)
	unet, _ := model.NewUNet(model.UNetConfig{Depth: 1, InChannels: 6, OutChannels: 3, NumFmaps: 2}, rng, backend)
	_, err = model.NewGenerator(unet, style)
	assert.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestGenerator_GradientsReachStyleMapping(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(5))
	gen := newGenerator(t, rng, backend, 2)

	x := tensor.Rand(tensor.Shape{2, 3, 8, 8}, rng, backend)
	s := tensor.Rand(tensor.Shape{2, 3, 8, 8}, rng, backend)

	_, grads := autodiff.ValueAndGrad(backend, func() *T {
		y, err := gen.Generate(x, s)
		require.NoError(t, err)
		return y.Sum()
	})

	for _, p := range gen.Parameters() {
		_, ok := grads[p.Tensor().Raw()]
		assert.True(t, ok, "no gradient for %s", p.Name())
	}
	assert.Len(t, gen.Parameters(), len(gen.UNet().Parameters())+len(gen.StyleMapping().Parameters()))
}

func TestClassify(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(6))
	m, err := model.NewDenseModel([3]int{1, 2, 2}, 3, []int{4}, rng, backend)
	require.NoError(t, err)

	backend.Tape().StartRecording()
	images := tensor.Rand(tensor.Shape{4, 1, 2, 2}, rng, backend)
	preds := model.Classify[Backend](m, images)
	probs := model.Probabilities[Backend](m, images)
	assert.Equal(t, 0, backend.Tape().NumOps(), "classification is not recorded")

	require.Len(t, preds, 4)
	require.Len(t, probs, 4)
	for i, row := range probs {
		sum := float32(0)
		best := 0
		for k, p := range row {
			sum += p
			if p > row[best] {
				best = k
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
		assert.Equal(t, best, preds[i])
	}
}
