// Package attribution explains classifier decisions with integrated gradients.
//
// Attribute integrates the gradient of the target logit along the straight
// path from a baseline image to the input:
//
//	attr = (x - x0) * Σ_k w_k ∂F_t/∂x |_{x0 + α_k (x - x0)}
//
// The result is signed and has the shape of the input. Its sum approximates
// F_t(x) - F_t(x0).
package attribution

import (
	"fmt"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// DefaultSteps is the number of integration points.
const DefaultSteps = 50

// Option configures IntegratedGradients.
type Option func(*config)

type config struct {
	steps  int
	method Method
}

// WithSteps sets the number of integration points.
func WithSteps(n int) Option {
	return func(c *config) { c.steps = n }
}

// WithMethod sets the integration method.
func WithMethod(m Method) Option {
	return func(c *config) { c.method = m }
}

// IntegratedGradients attributes the logits of a frozen classifier to its
// input pixels. The classifier's parameters are never updated.
type IntegratedGradients[B autodiff.BackwardCapable] struct {
	model   nn.Module[B]
	backend B
	alphas  []float64
	weights []float64
	method  Method
}

// NewIntegratedGradients creates an attribution engine for m. Defaults are
// DefaultSteps Gauss-Legendre points.
func NewIntegratedGradients[B autodiff.BackwardCapable](m nn.Module[B], backend B, opts ...Option) (*IntegratedGradients[B], error) {
	cfg := config{steps: DefaultSteps, method: GaussLegendre}
	for _, opt := range opts {
		opt(&cfg)
	}
	alphas, weights, err := cfg.method.Points(cfg.steps)
	if err != nil {
		return nil, err
	}
	return &IntegratedGradients[B]{
		model:   m,
		backend: backend,
		alphas:  alphas,
		weights: weights,
		method:  cfg.method,
	}, nil
}

// Steps returns the number of integration points.
func (ig *IntegratedGradients[B]) Steps() int { return len(ig.alphas) }

// Method returns the integration method.
func (ig *IntegratedGradients[B]) Method() Method { return ig.method }

// Attribute computes the attribution of x for targets[i] on row i against
// baseline, which must have the shape of x.
func (ig *IntegratedGradients[B]) Attribute(
	x *tensor.Tensor[float32, B],
	targets []int,
	baseline *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], error) {
	shape := x.Shape()
	if !shape.Equal(baseline.Shape()) {
		return nil, fmt.Errorf("%w: input %v, baseline %v", model.ErrShapeMismatch, shape, baseline.Shape())
	}
	if len(shape) == 0 || shape[0] != len(targets) {
		return nil, fmt.Errorf("%w: input %v, %d targets", model.ErrShapeMismatch, shape, len(targets))
	}

	if c, ok := ig.model.(interface{ NumClasses() int }); ok {
		for i, t := range targets {
			if t < 0 || t >= c.NumClasses() {
				return nil, fmt.Errorf("attribution: target %d of row %d out of range [0, %d)", t, i, c.NumClasses())
			}
		}
	}

	xs, x0 := x.Data(), baseline.Data()
	diff := make([]float32, len(xs))
	for i := range xs {
		diff[i] = xs[i] - x0[i]
	}

	var selector *tensor.Tensor[float32, B]
	total := make([]float64, len(xs))
	for k, alpha := range ig.alphas {
		path := make([]float32, len(xs))
		for i := range path {
			path[i] = x0[i] + float32(alpha)*diff[i]
		}
		input, err := tensor.FromSlice(path, shape, ig.backend)
		if err != nil {
			return nil, err
		}

		_, grads := autodiff.ValueAndGrad(ig.backend, func() *tensor.Tensor[float32, B] {
			logits := ig.model.Forward(input)
			if selector == nil {
				selector = oneHot(targets, logits.Shape()[1], ig.backend)
			}
			return logits.Mul(selector).Sum()
		})

		g, ok := grads[input.Raw()]
		if !ok {
			return nil, fmt.Errorf("attribution: no gradient reached the input")
		}
		for i, v := range g.AsFloat32() {
			total[i] += ig.weights[k] * float64(v)
		}
	}

	out := make([]float32, len(xs))
	for i := range out {
		out[i] = diff[i] * float32(total[i])
	}
	return tensor.FromSlice(out, shape, ig.backend)
}

// oneHot panics on targets outside [0, numClasses).
func oneHot[B tensor.Backend](targets []int, numClasses int, backend B) *tensor.Tensor[float32, B] {
	data := make([]float32, len(targets)*numClasses)
	for i, t := range targets {
		if t < 0 || t >= numClasses {
			panic(fmt.Sprintf("attribution: target %d out of range [0, %d)", t, numClasses))
		}
		data[i*numClasses+t] = 1
	}
	out, err := tensor.FromSlice(data, tensor.Shape{len(targets), numClasses}, backend)
	if err != nil {
		panic(err)
	}
	return out
}
