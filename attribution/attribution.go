// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package attribution provides integrated gradients over any classifier.
//
// Example:
//
//	ig, err := attribution.NewIntegratedGradients(clf, backend, attribution.WithSteps(50))
//	attr, err := ig.Attribute(images, labels, counterfactuals)
package attribution

import (
	"math/rand"

	"github.com/born-ml/dac/autodiff"
	"github.com/born-ml/dac/internal/attribution"
	"github.com/born-ml/dac/nn"
	"github.com/born-ml/dac/tensor"
)

// DefaultSteps is the default number of integration points.
const DefaultSteps = attribution.DefaultSteps

// Method is a quadrature rule over the straight path from baseline to input.
type Method = attribution.Method

// Integration methods.
const (
	GaussLegendre    = attribution.GaussLegendre
	RiemannLeft      = attribution.RiemannLeft
	RiemannRight     = attribution.RiemannRight
	RiemannMiddle    = attribution.RiemannMiddle
	RiemannTrapezoid = attribution.RiemannTrapezoid
)

// ParseMethod parses a method name such as "gausslegendre" or "riemann_left".
func ParseMethod(s string) (Method, error) { return attribution.ParseMethod(s) }

// Option configures IntegratedGradients.
type Option = attribution.Option

// WithSteps sets the number of integration points.
func WithSteps(n int) Option { return attribution.WithSteps(n) }

// WithMethod sets the integration method.
func WithMethod(m Method) Option { return attribution.WithMethod(m) }

// IntegratedGradients attributes classifier logits to input pixels.
type IntegratedGradients[B autodiff.BackwardCapable] = attribution.IntegratedGradients[B]

// NewIntegratedGradients creates an attribution engine for m.
func NewIntegratedGradients[B autodiff.BackwardCapable](m nn.Module[B], backend B, opts ...Option) (*IntegratedGradients[B], error) {
	return attribution.NewIntegratedGradients(m, backend, opts...)
}

// BaselineKind names a reference input.
type BaselineKind = attribution.BaselineKind

// Baseline kinds.
const (
	ZeroBaseline           = attribution.ZeroBaseline
	UniformBaseline        = attribution.UniformBaseline
	BlurBaseline           = attribution.BlurBaseline
	CounterfactualBaseline = attribution.CounterfactualBaseline
)

// ParseBaseline parses a baseline name such as "zero" or "blur".
func ParseBaseline(s string) (BaselineKind, error) { return attribution.ParseBaseline(s) }

// Baseline builds a baseline of kind for x.
func Baseline[B tensor.Backend](kind BaselineKind, x *tensor.Tensor[float32, B], rng *rand.Rand) (*tensor.Tensor[float32, B], error) {
	return attribution.Baseline(kind, x, rng)
}
