package dac_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dac/attribution"
	"github.com/born-ml/dac/autodiff"
	"github.com/born-ml/dac/backend/cpu"
	"github.com/born-ml/dac/dac"
	"github.com/born-ml/dac/nn"
	"github.com/born-ml/dac/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.Backend]

// TestPublicWorkflow runs selection, attribution and hybrids through the public
// packages only.
func TestPublicWorkflow(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(1))

	clf, err := nn.NewDenseModel([3]int{1, 2, 2}, 2, []int{4}, rng, backend)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, 0, 0, 1, 0, 1, 1, 0}, tensor.Shape{2, 1, 2, 2}, backend)
	require.NoError(t, err)
	cf, err := attribution.Baseline(attribution.ZeroBaseline, x, nil)
	require.NoError(t, err)

	ig, err := attribution.NewIntegratedGradients[Backend](clf, backend, attribution.WithSteps(8))
	require.NoError(t, err)
	attr, err := ig.Attribute(x, []int{0, 1}, cf)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), attr.Shape())

	successful, err := dac.SelectSuccessful([]int{0, 1}, []int{0, 1}, []int{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, successful)

	row := attr.Data()[:4]
	h, err := dac.MakeHybrid(x.Data()[:4], cf.Data()[:4], dac.NormalizeAttribution(row), 0)
	require.NoError(t, err)
	assert.Equal(t, cf.Data()[:4], h.Image, "threshold 0 takes every counterfactual pixel")
	assert.InDelta(t, 1.0, h.MaskFraction(), 1e-9)
}

func TestPublicHelpers(t *testing.T) {
	assert.Equal(t, 1, dac.OppositeClass(0))
	assert.Len(t, dac.Thresholds(21), 21)
	assert.InDelta(t, 0.5, dac.L1Distance([]float32{0, 1}, []float32{0, 0}), 1e-9)

	_, err := dac.MakeHybrid([]float32{1}, []float32{1, 2}, []float32{1}, 0.1)
	assert.ErrorIs(t, err, dac.ErrLengthMismatch)

	m, err := attribution.ParseMethod("riemann_trapezoid")
	require.NoError(t, err)
	assert.Equal(t, attribution.RiemannTrapezoid, m)
}
