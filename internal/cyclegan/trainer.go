// Package cyclegan trains a style-conditioned generator against a class-
// conditioned discriminator.
//
// Each step runs two phases on separate graphs. The generator phase backprops
// cycle + adversarial loss and steps only the generator optimizer; the
// discriminator phase backprops 0.5*(real - fake) cross-entropy on the detached
// fake and steps only the discriminator optimizer. The negated fake term is
// intentional and is not a binary real/fake GAN loss.
package cyclegan

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/logging"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/optim"
	"github.com/born-ml/dac/internal/tensor"
)

// Config holds the training hyperparameters.
type Config struct {
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	GeneratorLR     float32 `yaml:"generator_lr"`
	DiscriminatorLR float32 `yaml:"discriminator_lr"`
	Seed            int64   `yaml:"seed"`
}

// DefaultConfig returns the reference configuration: the discriminator learns
// a hundred times slower than the generator.
func DefaultConfig() Config {
	return Config{
		Epochs:          50,
		BatchSize:       32,
		GeneratorLR:     1e-4,
		DiscriminatorLR: 1e-6,
	}
}

// Option configures a Trainer.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for per-epoch summaries.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Trainer owns the generator, the discriminator and their optimizers.
type Trainer[B autodiff.BackwardCapable] struct {
	cfg           Config
	backend       B
	generator     *model.Generator[B]
	discriminator *model.DenseModel[B]
	genOpt        *optim.Adam[B]
	discOpt       *optim.Adam[B]
	cycleLoss     *nn.L1Loss[B]
	classLoss     *nn.CrossEntropyLoss[B]
	rng           *rand.Rand
	history       *LossHistory
	logger        *slog.Logger
}

// NewTrainer creates a Trainer. Each optimizer gets its own parameter group.
func NewTrainer[B autodiff.BackwardCapable](
	cfg Config,
	generator *model.Generator[B],
	discriminator *model.DenseModel[B],
	backend B,
	opts ...Option,
) (*Trainer[B], error) {
	if cfg.Epochs < 0 || cfg.GeneratorLR <= 0 || cfg.DiscriminatorLR <= 0 {
		return nil, fmt.Errorf("cyclegan: invalid config %+v", cfg)
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return &Trainer[B]{
		cfg:           cfg,
		backend:       backend,
		generator:     generator,
		discriminator: discriminator,
		genOpt:        optim.NewAdam(generator.Parameters(), optim.AdamConfig{LR: cfg.GeneratorLR}, backend),
		discOpt:       optim.NewAdam(discriminator.Parameters(), optim.AdamConfig{LR: cfg.DiscriminatorLR}, backend),
		cycleLoss:     nn.NewL1Loss(backend),
		classLoss:     nn.NewCrossEntropyLoss(backend),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		history:       &LossHistory{},
		logger:        logging.Component(o.logger, "cyclegan"),
	}, nil
}

// History returns the losses recorded so far.
func (t *Trainer[B]) History() *LossHistory { return t.history }

// Generator returns the trained generator.
func (t *Trainer[B]) Generator() *model.Generator[B] { return t.generator }

// Discriminator returns the trained discriminator.
func (t *Trainer[B]) Discriminator() *model.DenseModel[B] { return t.discriminator }

// Step runs one generator phase and one discriminator phase on the batch (x, y)
// and records the losses.
func (t *Trainer[B]) Step(x *tensor.Tensor[float32, B], y *tensor.Tensor[int32, B]) (StepLosses, error) {
	n := x.Shape()[0]
	if y.NumElements() != n {
		return StepLosses{}, fmt.Errorf("%w: %d images, %d labels", model.ErrShapeMismatch, n, y.NumElements())
	}

	perm := t.rng.Perm(n)
	xStyle := permute(x, perm)
	yTarget := permute(y, perm)

	cycle, adv, xFake, err := t.GeneratorStep(x, xStyle, yTarget)
	if err != nil {
		return StepLosses{}, err
	}
	disc := t.DiscriminatorStep(x, y, xFake, yTarget)

	losses := StepLosses{Cycle: cycle, Adversarial: adv, Discriminator: disc}
	t.history.Append(losses)
	return losses, nil
}

// GeneratorStep updates the generator only. It returns the cycle and adversarial
// losses and the detached fake batch.
func (t *Trainer[B]) GeneratorStep(
	x, xStyle *tensor.Tensor[float32, B],
	yTarget *tensor.Tensor[int32, B],
) (cycle, adv float32, xFake *tensor.Tensor[float32, B], err error) {
	if err := t.generator.CheckInputs(x.Shape(), xStyle.Shape()); err != nil {
		return 0, 0, nil, err
	}

	t.genOpt.ZeroGrad()
	var cycleLoss, advLoss *tensor.Tensor[float32, B]
	_, grads := autodiff.ValueAndGrad(t.backend, func() *tensor.Tensor[float32, B] {
		xFake = t.mustGenerate(x, xStyle)
		xCycled := t.mustGenerate(xFake, x)
		cycleLoss = t.cycleLoss.Forward(x, xCycled)
		advLoss = t.classLoss.Forward(t.discriminator.Forward(xFake), yTarget)
		return cycleLoss.Add(advLoss)
	})
	t.genOpt.Step(grads)

	return cycleLoss.Item(), advLoss.Item(), xFake.Detach(), nil
}

// DiscriminatorStep updates the discriminator only and returns its loss.
// xFake must already be detached from the generator graph.
func (t *Trainer[B]) DiscriminatorStep(
	x *tensor.Tensor[float32, B],
	y *tensor.Tensor[int32, B],
	xFake *tensor.Tensor[float32, B],
	yTarget *tensor.Tensor[int32, B],
) float32 {
	t.discOpt.ZeroGrad()
	loss, grads := autodiff.ValueAndGrad(t.backend, func() *tensor.Tensor[float32, B] {
		realLoss := t.classLoss.Forward(t.discriminator.Forward(x), y)
		fakeLoss := t.classLoss.Forward(t.discriminator.Forward(xFake), yTarget).MulScalar(-1)
		return realLoss.Add(fakeLoss).MulScalar(0.5)
	})
	t.discOpt.Step(grads)
	return loss.Item()
}

func (t *Trainer[B]) mustGenerate(source, style *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out, err := t.generator.Generate(source, style)
	if err != nil {
		panic(err)
	}
	return out
}

// Train runs cfg.Epochs passes over loader and returns the loss history. NaN
// losses are recorded, not caught.
func (t *Trainer[B]) Train(loader *data.Loader) (*LossHistory, error) {
	t.logger.Info("training started",
		logging.PhaseKey, "cyclegan",
		logging.SamplesKey, loader.Dataset().Len(),
		logging.BatchSizeKey, t.cfg.BatchSize)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		loader.Reset()
		start := t.history.Len()
		for {
			batch, ok, err := loader.Next()
			if err != nil {
				return t.history, err
			}
			if !ok {
				break
			}
			x := data.ImageTensor(batch, t.backend)
			y := data.LabelTensor(batch, t.backend)
			if _, err := t.Step(x, y); err != nil {
				return t.history, fmt.Errorf("cyclegan: epoch %d: %w", epoch, err)
			}
		}
		if t.history.Len() == start {
			continue
		}
		m, _ := t.history.Mean(start, t.history.Len())
		t.logger.Info("epoch done",
			logging.EpochKey, epoch,
			logging.StepKey, t.history.Len(),
			logging.CycleLossKey, m.Cycle,
			logging.AdvLossKey, m.Adversarial,
			logging.DiscLossKey, m.Discriminator)
	}
	return t.history, nil
}

// permute returns the batch rows of x reordered by perm. The copy is not recorded.
func permute[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B], perm []int) *tensor.Tensor[T, B] {
	shape := x.Shape()
	row := shape.NumElements() / shape[0]
	out := tensor.Zeros[T](shape, x.Backend())
	src, dst := x.Data(), out.Data()
	for i, p := range perm {
		copy(dst[i*row:(i+1)*row], src[p*row:(p+1)*row])
	}
	return out
}
