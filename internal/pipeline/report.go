package pipeline

import (
	"bytes"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/dac/internal/classifier"
	"github.com/born-ml/dac/internal/config"
	"github.com/born-ml/dac/internal/cyclegan"
	"github.com/born-ml/dac/internal/dac"
	"github.com/born-ml/dac/internal/model"
)

// Report is the outcome of Run.
type Report struct {
	RunID        string              `yaml:"run_id"`
	Config       config.Config       `yaml:"config"`
	Classifier   ClassifierReport    `yaml:"classifier"`
	Training     TrainingReport      `yaml:"training"`
	Translation  TranslationReport   `yaml:"translation"`
	Samples      int                 `yaml:"samples"`
	Successful   int                 `yaml:"successful"`
	Explanations []ExplanationReport `yaml:"explanations"`
}

// ClassifierReport describes the trained classifier on the analysis split.
type ClassifierReport struct {
	Epochs    []classifier.EpochStats `yaml:"epochs"`
	Accuracy  float64                 `yaml:"accuracy"`
	Confusion [][]float64             `yaml:"confusion,flow"`
}

// TrainingReport summarizes the CycleGAN losses.
type TrainingReport struct {
	Steps   int                   `yaml:"steps"`
	First   cyclegan.StepLosses   `yaml:"first"`
	Last    cyclegan.StepLosses   `yaml:"last"`
	History *cyclegan.LossHistory `yaml:"history"`
}

// TranslationReport holds classifier accuracies on the real images, their
// reconstructions and their counterfactuals (against the target class).
type TranslationReport struct {
	Real           float64     `yaml:"accuracy_real"`
	Reconstruction float64     `yaml:"accuracy_recon"`
	Counterfactual float64     `yaml:"accuracy_counter"`
	Confusion      [][]float64 `yaml:"counterfactual_confusion,flow"`
}

// ExplanationReport is the per-sample summary of a dac.Explanation.
type ExplanationReport struct {
	Index         int                `yaml:"index"`
	Label         int                `yaml:"label"`
	Target        int                `yaml:"target"`
	MaskFraction  float64            `yaml:"mask_fraction"`
	Probabilities dac.Classification `yaml:"probabilities"`
	// FlipThreshold is omitted when no threshold changes the decision.
	FlipThreshold *float32         `yaml:"flip_threshold,omitempty"`
	Sweep         []dac.SweepPoint `yaml:"sweep"`
}

// summarize averages the first and last tenth of the recorded steps.
func summarize(h *cyclegan.LossHistory) TrainingReport {
	r := TrainingReport{History: h}
	if h == nil || h.Len() == 0 {
		return r
	}
	r.Steps = h.Len()
	window := max(1, h.Len()/10)
	r.First, _ = h.Mean(0, window)
	r.Last, _ = h.Mean(h.Len()-window, h.Len())
	return r
}

func (t *TranslationReport) evaluate(clf *model.DenseModel[Backend], set *dac.Set, batchSize int, backend Backend) error {
	realDS, err := set.RealDataset()
	if err != nil {
		return err
	}
	recDS, err := set.ReconstructionDataset()
	if err != nil {
		return err
	}
	cfDS, err := set.CounterfactualDataset()
	if err != nil {
		return err
	}
	if t.Real, _, err = accuracyOf(clf, realDS, batchSize, backend); err != nil {
		return err
	}
	if t.Reconstruction, _, err = accuracyOf(clf, recDS, batchSize, backend); err != nil {
		return err
	}
	t.Counterfactual, t.Confusion, err = accuracyOf(clf, cfDS, batchSize, backend)
	return err
}

func (r *Report) addExplanations(explanations []dac.Explanation) {
	r.Successful = len(explanations)
	r.Explanations = make([]ExplanationReport, len(explanations))
	for i, e := range explanations {
		er := ExplanationReport{
			Index:         e.Index,
			Label:         e.Label,
			Target:        e.Target,
			MaskFraction:  e.Hybrid.MaskFraction(),
			Probabilities: e.Probabilities,
			Sweep:         e.Sweep,
		}
		if th, ok := dac.FlipThreshold(e.Sweep); ok {
			er.FlipThreshold = &th
		}
		r.Explanations[i] = er
	}
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// Format selects the report encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Encode renders v in format. JSON goes through a protobuf Struct so that the
// field names match the YAML keys.
func Encode(v any, format Format) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	switch format {
	case FormatYAML, "":
		return buf.Bytes(), nil
	case FormatJSON:
		var tree map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &tree); err != nil {
			return nil, err
		}
		s, err := structpb.NewStruct(tree)
		if err != nil {
			return nil, fmt.Errorf("pipeline: report: %w", err)
		}
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
	default:
		return nil, fmt.Errorf("pipeline: unknown report format %q", format)
	}
}
