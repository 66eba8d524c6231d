// Package logging builds the structured loggers used across the pipeline and
// defines the attribute keys they share.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Attribute keys.
const (
	PhaseKey     = "ml.phase"     // "classifier", "cyclegan", "attribution", "dac"
	ComponentKey = "ml.component" // package emitting the record
	RunIDKey     = "run.id"

	EpochKey = "train.epoch"
	StepKey  = "train.step"

	CycleLossKey = "loss.cycle"
	AdvLossKey   = "loss.adv"
	DiscLossKey  = "loss.disc"
	LossKey      = "loss.value"
	AccuracyKey  = "metric.accuracy"

	RealAccuracyKey           = "metric.accuracy_real"
	ReconstructionAccuracyKey = "metric.accuracy_recon"
	CounterfactualAccuracyKey = "metric.accuracy_counter"

	SamplesKey         = "data.samples"
	AnalysisSamplesKey = "data.analysis_samples"
	BatchSizeKey       = "data.batch_size"
	SuccessKey         = "dac.successful"

	PathKey = "file.path"
)

// Format selects the handler used by New.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
	return level, nil
}

// New returns a logger writing format records at level and above to w.
func New(w io.Writer, level slog.Level, format Format) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDiscard returns l, or Discard() when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// Component returns l tagged with the component key.
func Component(l *slog.Logger, name string) *slog.Logger {
	return OrDiscard(l).With(ComponentKey, name)
}
