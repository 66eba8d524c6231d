package dac

import (
	"fmt"
	"log/slog"

	"github.com/born-ml/dac/internal/attribution"
	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/logging"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// Classification holds the class distributions of an image, its counterfactual
// and a hybrid of the two.
type Classification struct {
	Image          []float32 `yaml:"image"`
	Counterfactual []float32 `yaml:"counterfactual"`
	Hybrid         []float32 `yaml:"hybrid"`
}

// Classifications runs m on image, counterfactual and hybrid, each of shape
// [C, H, W], and returns their softmax probabilities.
func Classifications[B tensor.Backend](
	m nn.Module[B],
	shape [3]int,
	image, counterfactual, hybrid []float32,
	backend B,
) (Classification, error) {
	row := shape[0] * shape[1] * shape[2]
	if len(image) != row || len(counterfactual) != row || len(hybrid) != row {
		return Classification{}, fmt.Errorf("%w: want %d values, got %d, %d, %d",
			ErrLengthMismatch, row, len(image), len(counterfactual), len(hybrid))
	}
	probs := model.Probabilities(m, stack([][]float32{image, counterfactual, hybrid}, shape[0], shape[1], shape[2], backend))
	return Classification{Image: probs[0], Counterfactual: probs[1], Hybrid: probs[2]}, nil
}

// SweepPoint describes the hybrid at one threshold.
type SweepPoint struct {
	Threshold         float32 `yaml:"threshold"`
	MaskFraction      float64 `yaml:"mask_fraction"`
	TargetProbability float32 `yaml:"target_probability"`
	Distance          float64 `yaml:"l1_to_counterfactual"`
}

// Sweep builds a hybrid for every threshold and reports how much of the
// counterfactual it contains and how strongly m assigns it to target.
func Sweep[B tensor.Backend](
	m nn.Module[B],
	shape [3]int,
	image, counterfactual, attr []float32,
	target int,
	thresholds []float32,
	backend B,
) ([]SweepPoint, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}
	if len(image) != shape[0]*shape[1]*shape[2] {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrLengthMismatch, len(image), shape)
	}
	hybrids := make([]Hybrid, len(thresholds))
	images := make([][]float32, len(thresholds))
	for i, th := range thresholds {
		h, err := MakeHybrid(image, counterfactual, attr, th)
		if err != nil {
			return nil, err
		}
		hybrids[i] = h
		images[i] = h.Image
	}

	probs := model.Probabilities(m, stack(images, shape[0], shape[1], shape[2], backend))
	if target < 0 || target >= len(probs[0]) {
		return nil, fmt.Errorf("dac: target %d not in [0, %d)", target, len(probs[0]))
	}
	points := make([]SweepPoint, len(thresholds))
	for i, th := range thresholds {
		points[i] = SweepPoint{
			Threshold:         th,
			MaskFraction:      hybrids[i].MaskFraction(),
			TargetProbability: probs[i][target],
			Distance:          L1Distance(hybrids[i].Image, counterfactual),
		}
	}
	return points, nil
}

// ExplainConfig controls Explain.
type ExplainConfig struct {
	// Threshold is applied to the normalized attribution, so it lies in [0, 1].
	Threshold  float32
	SweepSteps int
	BatchSize  int
	Logger     *slog.Logger
}

// Explanation is the analysis of one successful counterfactual.
type Explanation struct {
	Index         int
	Label         int
	Target        int
	Attribution   []float32 // raw integrated gradients
	Normalized    []float32
	Hybrid        Hybrid
	Probabilities Classification
	Sweep         []SweepPoint
}

// Select classifies the real images and counterfactuals of set with clf and
// returns the indices of the successful conversions.
func Select[B tensor.Backend](clf nn.Module[B], set *Set, batchSize int, backend B) ([]int, error) {
	reals := make([][]float32, set.Len())
	cfs := make([][]float32, set.Len())
	for i, it := range set.Items {
		reals[i] = it.Image
		cfs[i] = it.Counterfactual
	}
	realPreds := classifyAll(clf, reals, set, batchSize, backend)
	cfPreds := classifyAll(clf, cfs, set, batchSize, backend)
	return SelectSuccessfulTargets(realPreds, set.Labels(), cfPreds, set.Targets())
}

func classifyAll[B tensor.Backend](clf nn.Module[B], images [][]float32, set *Set, batchSize int, backend B) []int {
	if batchSize <= 0 {
		batchSize = len(images)
	}
	preds := make([]int, 0, len(images))
	for start := 0; start < len(images); start += batchSize {
		end := min(start+batchSize, len(images))
		preds = append(preds, model.Classify(clf, stack(images[start:end], set.C, set.H, set.W, backend))...)
	}
	return preds
}

// Explain selects the successful counterfactuals of set, attributes the
// classifier decision on each real image against its counterfactual and builds
// the hybrids. It returns ErrNoSuccessfulConversions when nothing qualifies.
func Explain[B autodiff.BackwardCapable](
	clf nn.Module[B],
	ig *attribution.IntegratedGradients[B],
	set *Set,
	cfg ExplainConfig,
	backend B,
) ([]Explanation, error) {
	logger := logging.Component(cfg.Logger, "dac")

	success, err := Select(clf, set, cfg.BatchSize, backend)
	if err != nil {
		return nil, err
	}
	logger.Info("successful conversions",
		logging.SuccessKey, len(success),
		logging.SamplesKey, set.Len())

	chosen, err := set.Subset(success)
	if err != nil {
		return nil, err
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = chosen.Len()
	}
	shape := [3]int{set.C, set.H, set.W}
	row := set.C * set.H * set.W
	thresholds := Thresholds(cfg.SweepSteps)

	out := make([]Explanation, 0, chosen.Len())
	for start := 0; start < chosen.Len(); start += batchSize {
		end := min(start+batchSize, chosen.Len())
		items := chosen.Items[start:end]

		images := make([][]float32, len(items))
		baselines := make([][]float32, len(items))
		targets := make([]int, len(items))
		for i, it := range items {
			images[i] = it.Image
			baselines[i] = it.Counterfactual
			targets[i] = it.Label
		}
		attr, err := ig.Attribute(
			stack(images, set.C, set.H, set.W, backend),
			targets,
			stack(baselines, set.C, set.H, set.W, backend),
		)
		if err != nil {
			return nil, err
		}

		for i, it := range items {
			raw := append([]float32(nil), attr.Data()[i*row:(i+1)*row]...)
			norm := NormalizeAttribution(raw)
			hybrid, err := MakeHybrid(it.Image, it.Counterfactual, norm, cfg.Threshold)
			if err != nil {
				return nil, err
			}
			probs, err := Classifications(clf, shape, it.Image, it.Counterfactual, hybrid.Image, backend)
			if err != nil {
				return nil, err
			}
			sweep, err := Sweep(clf, shape, it.Image, it.Counterfactual, norm, it.Target, thresholds, backend)
			if err != nil {
				return nil, err
			}
			out = append(out, Explanation{
				Index:         it.Index,
				Label:         it.Label,
				Target:        it.Target,
				Attribution:   raw,
				Normalized:    norm,
				Hybrid:        hybrid,
				Probabilities: probs,
				Sweep:         sweep,
			})
		}
		logger.Debug("attributed batch", logging.StepKey, end)
	}
	return out, nil
}

// FlipThreshold returns the largest threshold at which the hybrid is assigned
// to the target class with probability above one half.
func FlipThreshold(points []SweepPoint) (float32, bool) {
	best, found := float32(0), false
	for _, p := range points {
		if p.TargetProbability > 0.5 && (!found || p.Threshold > best) {
			best, found = p.Threshold, true
		}
	}
	return best, found
}
