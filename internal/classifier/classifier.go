// Package classifier trains the image classifier that the attribution pipeline
// later treats as a frozen function.
package classifier

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/logging"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/optim"
	"github.com/born-ml/dac/internal/tensor"
)

// Config holds training hyperparameters. Hidden sizes the dense layers of
// the classifier built for training; Train itself takes a ready model.
type Config struct {
	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size"`
	LR        float32 `yaml:"lr"`
	Hidden    []int   `yaml:"hidden,flow"`
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{Epochs: 5, BatchSize: 32, LR: 1e-3, Hidden: slices.Clone(model.DefaultHidden)}
}

// EpochStats summarises one training epoch.
type EpochStats struct {
	Epoch    int     `yaml:"epoch"`
	Loss     float32 `yaml:"loss"`
	Accuracy float32 `yaml:"accuracy"`
}

// Train fits m to the batches of loader with Adam and cross-entropy.
func Train[B autodiff.BackwardCapable](
	m nn.Module[B],
	loader *data.Loader,
	cfg Config,
	backend B,
	logger *slog.Logger,
) ([]EpochStats, error) {
	if cfg.Epochs < 0 || cfg.LR <= 0 {
		return nil, fmt.Errorf("classifier: invalid config %+v", cfg)
	}
	logger = logging.Component(logger, "classifier")

	optimizer := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: cfg.LR}, backend)
	criterion := nn.NewCrossEntropyLoss(backend)

	stats := make([]EpochStats, 0, cfg.Epochs)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		loader.Reset()
		totalLoss := float32(0)
		totalCorrect := 0
		totalSamples := 0
		batches := 0

		for {
			batch, ok, err := loader.Next()
			if err != nil {
				return stats, err
			}
			if !ok {
				break
			}
			images := data.ImageTensor(batch, backend)
			labels := data.LabelTensor(batch, backend)

			optimizer.ZeroGrad()
			var logits *tensor.Tensor[float32, B]
			loss, grads := autodiff.ValueAndGrad(backend, func() *tensor.Tensor[float32, B] {
				logits = m.Forward(images)
				return criterion.Forward(logits, labels)
			})
			optimizer.Step(grads)

			totalLoss += loss.Item()
			totalCorrect += int(nn.Accuracy(logits, labels)*float32(batch.Size) + 0.5)
			totalSamples += batch.Size
			batches++
		}
		if batches == 0 {
			return stats, fmt.Errorf("classifier: %w: loader produced no batches", data.ErrEmpty)
		}

		s := EpochStats{
			Epoch:    epoch,
			Loss:     totalLoss / float32(batches),
			Accuracy: float32(totalCorrect) / float32(totalSamples),
		}
		stats = append(stats, s)
		logger.Info("epoch done",
			logging.EpochKey, epoch,
			logging.LossKey, s.Loss,
			logging.AccuracyKey, s.Accuracy)
	}
	return stats, nil
}
