// Package config holds the run configuration of the dac command and its YAML
// form.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/dac/internal/attribution"
	"github.com/born-ml/dac/internal/classifier"
	"github.com/born-ml/dac/internal/cyclegan"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/model"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full run configuration.
type Config struct {
	Seed        int64             `yaml:"seed"`
	Data        Data              `yaml:"data"`
	Classifier  classifier.Config `yaml:"classifier"`
	Generator   Generator         `yaml:"generator"`
	Training    cyclegan.Config   `yaml:"training"`
	Attribution Attribution       `yaml:"attribution"`
	Hybrid      Hybrid            `yaml:"hybrid"`
	Checkpoint  Checkpoint        `yaml:"checkpoint"`
}

// Data selects the synthetic dataset and the class pair to translate between.
type Data struct {
	Samples  int   `yaml:"samples"`
	Size     int   `yaml:"size"`
	Strokes  int   `yaml:"strokes"`
	Classes  []int `yaml:"classes"`
	Holdout  int   `yaml:"holdout"` // samples kept out of training for analysis
	DropLast bool  `yaml:"drop_last"`
}

// Generator configures the UNet and the style mapping, plus the widths of the
// discriminator trained against them.
type Generator struct {
	Depth       int   `yaml:"depth"`
	NumFmaps    int   `yaml:"num_fmaps"`
	StyleDim    int   `yaml:"style_dim"`
	StyleHidden []int `yaml:"style_hidden,flow"`

	// DiscriminatorHidden sizes the CycleGAN discriminator.
	DiscriminatorHidden []int `yaml:"discriminator_hidden,flow"`
}

// Attribution configures integrated gradients.
type Attribution struct {
	Method string `yaml:"method"`
	Steps  int    `yaml:"steps"`
	// Baselines compared by the baselines command.
	Baselines []string `yaml:"baselines,flow"`
}

// Hybrid configures the hybrid images.
type Hybrid struct {
	Threshold  float32 `yaml:"threshold"`
	SweepSteps int     `yaml:"sweep_steps"`
	BatchSize  int     `yaml:"batch_size"`
}

// Checkpoint names parameter files. Empty paths are skipped.
type Checkpoint struct {
	// Classifier is loaded instead of training the classifier.
	Classifier     string `yaml:"classifier"`
	SaveClassifier string `yaml:"save_classifier"`
	SaveGenerator  string `yaml:"save_generator"`
}

// Default returns the reference configuration.
func Default() Config {
	shapes := data.DefaultShapesConfig()
	cls := classifier.DefaultConfig()
	training := cyclegan.DefaultConfig()
	return Config{
		Seed: 0,
		Data: Data{
			Samples:  shapes.Samples,
			Size:     shapes.Size,
			Strokes:  shapes.Strokes,
			Classes:  []int{0, 1},
			Holdout:  100,
			DropLast: true,
		},
		Classifier: cls,
		Generator: Generator{
			Depth:               2,
			NumFmaps:            16,
			StyleDim:            3,
			StyleHidden:         slices.Clone(model.DefaultHidden),
			DiscriminatorHidden: slices.Clone(model.DefaultHidden),
		},
		Training: training,
		Attribution: Attribution{
			Method:    attribution.GaussLegendre.String(),
			Steps:     attribution.DefaultSteps,
			Baselines: []string{"zero", "uniform", "blur"},
		},
		Hybrid: Hybrid{
			Threshold:  0.1,
			SweepSteps: 21,
			BatchSize:  10,
		},
	}
}

// Load reads a YAML file over Default and validates the result. Unknown keys
// are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Marshal renders cfg as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate checks value ranges and cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Data.Samples > 0, "data.samples must be positive, got %d", c.Data.Samples)
	check(c.Data.Size >= 4, "data.size must be at least 4, got %d", c.Data.Size)
	check(c.Data.Strokes > 0, "data.strokes must be positive, got %d", c.Data.Strokes)
	check(len(c.Data.Classes) == 2, "data.classes must name two classes, got %v", c.Data.Classes)
	for _, k := range c.Data.Classes {
		check(k >= 0 && k < len(data.ClassNames), "data.classes: class %d not in [0, %d)", k, len(data.ClassNames))
	}
	check(c.Data.Holdout >= 0 && c.Data.Holdout < c.Data.Samples,
		"data.holdout must be in [0, %d), got %d", c.Data.Samples, c.Data.Holdout)

	check(c.Classifier.Epochs >= 0, "classifier.epochs must not be negative")
	check(c.Classifier.BatchSize > 0, "classifier.batch_size must be positive")
	check(c.Classifier.LR > 0, "classifier.lr must be positive")

	check(c.Generator.Depth > 0, "generator.depth must be positive, got %d", c.Generator.Depth)
	check(c.Generator.NumFmaps > 0, "generator.num_fmaps must be positive")
	check(c.Generator.StyleDim > 0, "generator.style_dim must be positive")
	for _, h := range c.Classifier.Hidden {
		check(h > 0, "classifier.hidden widths must be positive, got %d", h)
	}
	for _, h := range append(slices.Clone(c.Generator.DiscriminatorHidden), c.Generator.StyleHidden...) {
		check(h > 0, "generator hidden widths must be positive, got %d", h)
	}
	if c.Generator.Depth > 0 {
		div := 1 << (c.Generator.Depth - 1)
		check(c.Data.Size%div == 0, "data.size %d must be divisible by %d for generator.depth %d",
			c.Data.Size, div, c.Generator.Depth)
	}

	check(c.Training.Epochs >= 0, "training.epochs must not be negative")
	check(c.Training.BatchSize > 0, "training.batch_size must be positive")
	check(c.Training.GeneratorLR > 0, "training.generator_lr must be positive")
	check(c.Training.DiscriminatorLR > 0, "training.discriminator_lr must be positive")

	if m, err := attribution.ParseMethod(c.Attribution.Method); err != nil {
		errs = append(errs, fmt.Errorf("%w: attribution.method: %w", ErrInvalid, err))
	} else if m == attribution.RiemannTrapezoid {
		check(c.Attribution.Steps >= 2, "attribution.steps must be at least 2 for %s", m)
	}
	check(c.Attribution.Steps > 0, "attribution.steps must be positive")
	for _, b := range c.Attribution.Baselines {
		if _, err := attribution.ParseBaseline(b); err != nil {
			errs = append(errs, fmt.Errorf("%w: attribution.baselines: %w", ErrInvalid, err))
		}
	}

	check(c.Hybrid.SweepSteps >= 0, "hybrid.sweep_steps must not be negative")
	check(c.Hybrid.BatchSize > 0, "hybrid.batch_size must be positive")

	check(c.Checkpoint.Classifier == "" || c.Checkpoint.Classifier != c.Checkpoint.SaveClassifier,
		"checkpoint.save_classifier must differ from checkpoint.classifier")

	return errors.Join(errs...)
}

// Method returns the parsed attribution method. Call after Validate.
func (c Config) Method() attribution.Method {
	m, _ := attribution.ParseMethod(c.Attribution.Method)
	return m
}
