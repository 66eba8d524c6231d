// Package pipeline runs the discriminative attribution workflow end to end:
// classifier training, CycleGAN training, counterfactual generation, success
// selection, attribution and hybrids.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/born-ml/dac/internal/attribution"
	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/classifier"
	"github.com/born-ml/dac/internal/config"
	"github.com/born-ml/dac/internal/cyclegan"
	"github.com/born-ml/dac/internal/dac"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/evaluate"
	"github.com/born-ml/dac/internal/logging"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/serialization"
)

// Backend is the backend every stage runs on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// splits holds the two-class dataset divided into training and analysis parts.
type splits struct {
	train    data.Dataset
	analysis data.Dataset
	shape    [3]int
}

func loadData(cfg config.Config) (splits, error) {
	full, err := data.NewColoredShapes(data.ShapesConfig{
		Samples: cfg.Data.Samples,
		Size:    cfg.Data.Size,
		Strokes: cfg.Data.Strokes,
		Seed:    cfg.Seed,
	})
	if err != nil {
		return splits{}, err
	}
	pair, err := data.NewClassSubset(full, cfg.Data.Classes)
	if err != nil {
		return splits{}, err
	}

	s := splits{train: pair, analysis: pair, shape: [3]int{3, cfg.Data.Size, cfg.Data.Size}}
	if cfg.Data.Holdout == 0 {
		return s, nil
	}
	n := pair.Len()
	if cfg.Data.Holdout >= n {
		return splits{}, fmt.Errorf("pipeline: holdout %d leaves no training samples out of %d", cfg.Data.Holdout, n)
	}
	cut := n - cfg.Data.Holdout
	if s.train, err = data.NewSubset(pair, span(0, cut)); err != nil {
		return splits{}, err
	}
	if s.analysis, err = data.NewSubset(pair, span(cut, n)); err != nil {
		return splits{}, err
	}
	return s, nil
}

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// trainClassifier trains the classifier, or loads it when a checkpoint is
// configured, and saves it when asked to.
func trainClassifier(cfg config.Config, ds data.Dataset, shape [3]int, rng *rand.Rand, backend Backend, logger *slog.Logger) (*model.DenseModel[Backend], []classifier.EpochStats, error) {
	clf, err := model.NewDenseModel(shape, 2, cfg.Classifier.Hidden, rng, backend)
	if err != nil {
		return nil, nil, err
	}

	if path := cfg.Checkpoint.Classifier; path != "" {
		if _, err := serialization.LoadParameters(path, checkpointClassifier, clf.Parameters()); err != nil {
			return nil, nil, err
		}
		logger.Info("classifier loaded", logging.PathKey, path)
		return clf, nil, nil
	}

	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: cfg.Classifier.BatchSize, Shuffle: true}, rng)
	if err != nil {
		return nil, nil, err
	}
	stats, err := classifier.Train[Backend](clf, loader, cfg.Classifier, backend, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := save(cfg.Checkpoint.SaveClassifier, checkpointClassifier, clf.Parameters(), logger); err != nil {
		return nil, nil, err
	}
	return clf, stats, nil
}

// Checkpoint model types.
const (
	checkpointClassifier = "classifier"
	checkpointGenerator  = "generator"
)

func save(path, modelType string, params []*nn.Parameter[Backend], logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	if err := serialization.SaveParameters(path, modelType, params, nil); err != nil {
		return fmt.Errorf("pipeline: save %s: %w", modelType, err)
	}
	logger.Info("checkpoint saved", logging.PathKey, path)
	return nil
}

func accuracyOf(clf *model.DenseModel[Backend], ds data.Dataset, batchSize int, backend Backend) (float64, [][]float64, error) {
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: batchSize}, nil)
	if err != nil {
		return 0, nil, err
	}
	preds, labels, err := evaluate.Predict(clf, loader, backend)
	if err != nil {
		return 0, nil, err
	}
	cm, err := evaluate.ConfusionMatrix(labels, preds, ds.NumClasses())
	if err != nil {
		return 0, nil, err
	}
	return evaluate.Accuracy(cm), rows(cm), nil
}

// Run executes the full workflow. When no counterfactual succeeds it returns
// the partial report together with an error wrapping
// dac.ErrNoSuccessfulConversions.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger = logging.OrDiscard(logger).With(logging.RunIDKey, runID)
	report := &Report{RunID: runID, Config: cfg}

	rng := rand.New(rand.NewSource(cfg.Seed))
	backend := autodiff.New(cpu.New())

	ds, err := loadData(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("data ready",
		logging.SamplesKey, ds.train.Len(),
		logging.AnalysisSamplesKey, ds.analysis.Len())

	// Classifier.
	clf, stats, err := trainClassifier(cfg, ds.train, ds.shape, rng, backend, logger.With(logging.PhaseKey, "classifier"))
	if err != nil {
		return nil, fmt.Errorf("pipeline: classifier: %w", err)
	}
	report.Classifier.Epochs = stats
	if report.Classifier.Accuracy, report.Classifier.Confusion, err = accuracyOf(clf, ds.analysis, cfg.Hybrid.BatchSize, backend); err != nil {
		return nil, err
	}
	logger.Info("classifier evaluated", logging.AccuracyKey, report.Classifier.Accuracy)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// CycleGAN.
	style, err := model.NewDenseModel(ds.shape, cfg.Generator.StyleDim, cfg.Generator.StyleHidden, rng, backend)
	if err != nil {
		return nil, err
	}
	unet, err := model.NewUNet(model.UNetConfig{
		Depth:       cfg.Generator.Depth,
		InChannels:  ds.shape[0] + cfg.Generator.StyleDim,
		OutChannels: ds.shape[0],
		NumFmaps:    cfg.Generator.NumFmaps,
	}, rng, backend)
	if err != nil {
		return nil, err
	}
	gen, err := model.NewGenerator(unet, style)
	if err != nil {
		return nil, err
	}
	disc, err := model.NewDenseModel(ds.shape, 2, cfg.Generator.DiscriminatorHidden, rng, backend)
	if err != nil {
		return nil, err
	}
	trainer, err := cyclegan.NewTrainer(cfg.Training, gen, disc, backend,
		cyclegan.WithLogger(logger.With(logging.PhaseKey, "cyclegan")))
	if err != nil {
		return nil, err
	}
	loader, err := data.NewLoader(ds.train, data.LoaderConfig{
		BatchSize: cfg.Training.BatchSize,
		Shuffle:   true,
		DropLast:  cfg.Data.DropLast,
	}, rng)
	if err != nil {
		return nil, err
	}
	history, err := trainer.Train(loader)
	report.Training = summarize(history)
	if err != nil {
		return report, fmt.Errorf("pipeline: cyclegan: %w", err)
	}
	if err := save(cfg.Checkpoint.SaveGenerator, checkpointGenerator, gen.Parameters(), logger); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// Counterfactuals.
	set, err := dac.Counterfactuals(gen, ds.analysis, dac.OppositeClass, rng, cfg.Hybrid.BatchSize, backend)
	if err != nil {
		return report, err
	}
	if err := report.Translation.evaluate(clf, set, cfg.Hybrid.BatchSize, backend); err != nil {
		return report, err
	}
	logger.Info("counterfactuals evaluated",
		logging.RealAccuracyKey, report.Translation.Real,
		logging.ReconstructionAccuracyKey, report.Translation.Reconstruction,
		logging.CounterfactualAccuracyKey, report.Translation.Counterfactual)

	// Attribution and hybrids.
	ig, err := attribution.NewIntegratedGradients[Backend](clf, backend,
		attribution.WithMethod(cfg.Method()),
		attribution.WithSteps(cfg.Attribution.Steps))
	if err != nil {
		return report, err
	}
	explanations, err := dac.Explain(clf, ig, set, dac.ExplainConfig{
		Threshold:  cfg.Hybrid.Threshold,
		SweepSteps: cfg.Hybrid.SweepSteps,
		BatchSize:  cfg.Hybrid.BatchSize,
		Logger:     logger.With(logging.PhaseKey, "dac"),
	}, backend)
	report.Samples = set.Len()
	if err != nil {
		if errors.Is(err, dac.ErrNoSuccessfulConversions) {
			logger.Warn("no successful conversions", logging.SamplesKey, set.Len())
		}
		return report, err
	}
	report.addExplanations(explanations)
	logger.Info("run finished", logging.SuccessKey, report.Successful)
	return report, nil
}
