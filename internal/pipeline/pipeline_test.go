package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/dac/internal/config"
	"github.com/born-ml/dac/internal/dac"
	"github.com/born-ml/dac/internal/pipeline"
	"github.com/born-ml/dac/internal/serialization"
)

// tinyConfig runs every stage in a fraction of a second.
func tinyConfig() config.Config {
	cfg := config.Default()
	cfg.Data.Samples = 48
	cfg.Data.Size = 4
	cfg.Data.Strokes = 1
	cfg.Data.Holdout = 8
	cfg.Classifier.Epochs = 3
	cfg.Classifier.BatchSize = 8
	cfg.Generator.Depth = 1
	cfg.Generator.NumFmaps = 2
	cfg.Classifier.Hidden = []int{6}
	cfg.Generator.DiscriminatorHidden = []int{8}
	cfg.Generator.StyleHidden = []int{4}
	cfg.Training.Epochs = 2
	cfg.Training.BatchSize = 4
	cfg.Attribution.Steps = 4
	cfg.Hybrid.SweepSteps = 3
	cfg.Hybrid.BatchSize = 4
	return cfg
}

func TestRun(t *testing.T) {
	report, err := pipeline.Run(context.Background(), tinyConfig(), nil)
	if err != nil {
		// An undertrained generator may fool nothing; that is reported, not hidden.
		require.ErrorIs(t, err, dac.ErrNoSuccessfulConversions)
	}
	require.NotNil(t, report)

	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Classifier.Epochs, 3)
	assert.Len(t, report.Classifier.Confusion, 2)
	assert.Positive(t, report.Training.Steps)
	assert.Equal(t, report.Training.Steps, report.Training.History.Len())
	assert.Equal(t, 8, report.Samples)
	assert.Equal(t, len(report.Explanations), report.Successful)
	for _, e := range report.Explanations {
		assert.Len(t, e.Sweep, 3)
		assert.Equal(t, 1-e.Label, e.Target)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := tinyConfig()
	cfg.Data.Classes = []int{0}
	_, err := pipeline.Run(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg = tinyConfig()
	cfg.Data.Holdout = 40 // more than the two-class subset holds
	_, err = pipeline.Run(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := pipeline.Run(ctx, tinyConfig(), nil)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, report)
	assert.Zero(t, report.Training.Steps, "stops before the CycleGAN")
}

func TestRun_Checkpoints(t *testing.T) {
	dir := t.TempDir()
	cfg := tinyConfig()
	generator := filepath.Join(dir, "generator.dack")
	saved := filepath.Join(dir, "classifier.dack")
	cfg.Checkpoint.SaveClassifier = saved
	cfg.Checkpoint.SaveGenerator = generator
	first, err := pipeline.Run(context.Background(), cfg, nil)
	if err != nil {
		require.ErrorIs(t, err, dac.ErrNoSuccessfulConversions)
	}
	assert.FileExists(t, generator)

	// The loaded classifier skips training and scores the same split identically.
	cfg.Checkpoint = config.Checkpoint{Classifier: saved}
	second, err := pipeline.Run(context.Background(), cfg, nil)
	if err != nil {
		require.ErrorIs(t, err, dac.ErrNoSuccessfulConversions)
	}
	assert.Empty(t, second.Classifier.Epochs)
	assert.Equal(t, first.Classifier.Accuracy, second.Classifier.Accuracy)

	cfg.Checkpoint.Classifier = generator
	_, err = pipeline.Run(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, serialization.ErrParameterMismatch)

	// The classifier is rebuilt from classifier.hidden, not the discriminator widths.
	cfg.Checkpoint.Classifier = saved
	cfg.Classifier.Hidden = []int{8}
	_, err = pipeline.Run(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, serialization.ErrParameterMismatch)
}

func TestBaselines(t *testing.T) {
	cfg := tinyConfig()
	report, err := pipeline.Baselines(context.Background(), cfg, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Samples)
	require.Len(t, report.Baselines, 3)
	for i, name := range []string{"zero", "uniform", "blur"} {
		b := report.Baselines[i]
		assert.Equal(t, name, b.Name)
		assert.GreaterOrEqual(t, b.MeanAbs, 0.0)
		assert.True(t, b.PositiveFraction >= 0 && b.PositiveFraction <= 1)
	}

	cfg.Attribution.Baselines = []string{"counterfactual"}
	_, err = pipeline.Baselines(context.Background(), cfg, 4, nil)
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	v := pipeline.BaselineReport{RunID: "r", Method: "gausslegendre", Steps: 50, Baselines: []pipeline.BaselineResult{{Name: "zero", MeanAbs: 0.5}}}

	out, err := pipeline.Encode(v, pipeline.FormatYAML)
	require.NoError(t, err)
	var back pipeline.BaselineReport
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, v, back)

	out, err = pipeline.Encode(v, pipeline.FormatJSON)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.Unmarshal(out, &tree))
	assert.Equal(t, "gausslegendre", tree["method"])
	assert.Equal(t, 50.0, tree["steps"])
	baselines := tree["baselines"].([]any)
	assert.Equal(t, 0.5, baselines[0].(map[string]any)["mean_abs"])

	_, err = pipeline.Encode(v, "xml")
	assert.Error(t, err)
}
