package classifier_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/classifier"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/model"
)

func TestTrain_SeparableColours(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(1))

	ds, err := data.NewSolid([][3]float32{{1, 0, 0}, {0, 0, 1}, {0, 1, 0}}, 4, 2, 2)
	require.NoError(t, err)
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: 4, Shuffle: true}, rng)
	require.NoError(t, err)
	m, err := model.NewDenseModel([3]int{3, 2, 2}, 3, []int{8}, rng, backend)
	require.NoError(t, err)

	stats, err := classifier.Train[*autodiff.AutodiffBackend[*cpu.CPUBackend]](m, loader, classifier.Config{Epochs: 40, LR: 1e-2}, backend, nil)
	require.NoError(t, err)
	require.Len(t, stats, 40)

	assert.Less(t, stats[39].Loss, stats[0].Loss)
	assert.Equal(t, float32(1), stats[39].Accuracy)
	assert.Equal(t, 0, backend.Tape().NumOps())

	all, err := data.All(ds)
	require.NoError(t, err)
	preds := model.Classify[*autodiff.AutodiffBackend[*cpu.CPUBackend]](m, data.ImageTensor(all, backend))
	for i, p := range preds {
		assert.Equal(t, int(all.Labels[i]), p)
	}
}

func TestTrain_InvalidConfig(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(2))
	ds, _ := data.NewSolid([][3]float32{{1, 0, 0}}, 1, 1, 1)
	loader, _ := data.NewLoader(ds, data.LoaderConfig{BatchSize: 1}, nil)
	m, _ := model.NewDenseModel([3]int{3, 1, 1}, 1, nil, rng, backend)

	_, err := classifier.Train[*autodiff.AutodiffBackend[*cpu.CPUBackend]](m, loader, classifier.Config{Epochs: 1}, backend, nil)
	assert.Error(t, err)
}
