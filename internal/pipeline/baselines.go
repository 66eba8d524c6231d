package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/born-ml/dac/internal/attribution"
	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/backend/cpu"
	"github.com/born-ml/dac/internal/config"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/logging"
	"github.com/born-ml/dac/internal/tensor"
)

// BaselineReport compares attribution baselines on one batch.
type BaselineReport struct {
	RunID     string           `yaml:"run_id"`
	Method    string           `yaml:"method"`
	Steps     int              `yaml:"steps"`
	Samples   int              `yaml:"samples"`
	Accuracy  float64          `yaml:"classifier_accuracy"`
	Baselines []BaselineResult `yaml:"baselines"`
}

// BaselineResult summarizes the attributions against one baseline.
type BaselineResult struct {
	Name string `yaml:"name"`
	// MeanAbs is the mean attribution magnitude per pixel.
	MeanAbs float64 `yaml:"mean_abs"`
	// PositiveFraction is the share of pixels with positive attribution.
	PositiveFraction float64 `yaml:"positive_fraction"`
	// CompletenessGap is the mean |Σ attr - (F(x) - F(x0))| per sample.
	CompletenessGap float64 `yaml:"completeness_gap"`
}

// Baselines trains the classifier and attributes its decision on the first
// samples of the analysis split against every configured baseline.
func Baselines(ctx context.Context, cfg config.Config, samples int, logger *slog.Logger) (*BaselineReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger = logging.OrDiscard(logger).With(logging.RunIDKey, runID)
	rng := rand.New(rand.NewSource(cfg.Seed))
	backend := autodiff.New(cpu.New())

	ds, err := loadData(cfg)
	if err != nil {
		return nil, err
	}
	clf, _, err := trainClassifier(cfg, ds.train, ds.shape, rng, backend, logger.With(logging.PhaseKey, "classifier"))
	if err != nil {
		return nil, err
	}
	acc, _, err := accuracyOf(clf, ds.analysis, cfg.Hybrid.BatchSize, backend)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples = min(max(samples, 1), ds.analysis.Len())
	subset, err := data.NewSubset(ds.analysis, span(0, samples))
	if err != nil {
		return nil, err
	}
	batch, err := data.All(subset)
	if err != nil {
		return nil, err
	}
	x := data.ImageTensor(batch, backend)
	targets := make([]int, batch.Size)
	for i, l := range batch.Labels {
		targets[i] = int(l)
	}

	ig, err := attribution.NewIntegratedGradients[Backend](clf, backend,
		attribution.WithMethod(cfg.Method()),
		attribution.WithSteps(cfg.Attribution.Steps))
	if err != nil {
		return nil, err
	}

	report := &BaselineReport{
		RunID:    runID,
		Method:   cfg.Method().String(),
		Steps:    ig.Steps(),
		Samples:  samples,
		Accuracy: acc,
	}
	for _, name := range cfg.Attribution.Baselines {
		kind, err := attribution.ParseBaseline(name)
		if err != nil {
			return nil, err
		}
		x0, err := attribution.Baseline(kind, x, rng)
		if err != nil {
			return nil, fmt.Errorf("pipeline: baseline %s: %w", kind, err)
		}
		attr, err := ig.Attribute(x, targets, x0)
		if err != nil {
			return nil, err
		}
		res := summarizeAttribution(kind.String(), attr.Data())
		res.CompletenessGap = completenessGap(clf.Forward, x, x0, attr, targets, backend)
		report.Baselines = append(report.Baselines, res)
		logger.Info("baseline attributed",
			logging.PhaseKey, "attribution",
			"attribution.baseline", kind.String(),
			"attribution.completeness_gap", res.CompletenessGap)
	}
	return report, nil
}

func summarizeAttribution(name string, attr []float32) BaselineResult {
	var abs float64
	positive := 0
	for _, a := range attr {
		abs += math.Abs(float64(a))
		if a > 0 {
			positive++
		}
	}
	return BaselineResult{
		Name:             name,
		MeanAbs:          abs / float64(len(attr)),
		PositiveFraction: float64(positive) / float64(len(attr)),
	}
}

func completenessGap(
	forward func(*tensor.Tensor[float32, Backend]) *tensor.Tensor[float32, Backend],
	x, x0, attr *tensor.Tensor[float32, Backend],
	targets []int,
	backend Backend,
) float64 {
	var fx, f0 *tensor.Tensor[float32, Backend]
	autodiff.NoGrad(backend, func() {
		fx, f0 = forward(x), forward(x0)
	})
	row := attr.NumElements() / len(targets)
	values := attr.Data()
	var gap float64
	for i, t := range targets {
		var sum float64
		for _, v := range values[i*row : (i+1)*row] {
			sum += float64(v)
		}
		gap += math.Abs(sum - float64(fx.At(i, t)-f0.At(i, t)))
	}
	return gap / float64(len(targets))
}
