// Package model defines the networks of the attribution pipeline: the dense
// classifier (also used as discriminator and style mapping), the UNet and the
// style-conditioned generator built from them.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// ErrShapeMismatch is returned when an input does not match the shape a model
// was configured for.
var ErrShapeMismatch = errors.New("model: shape mismatch")

// DefaultHidden are the hidden layer widths of DenseModel.
var DefaultHidden = []int{120, 84}

// DenseModel is a fully-connected network over flattened images:
//
//	flatten -> Linear(in, 120) -> ReLU -> Linear(120, 84) -> ReLU -> Linear(84, K)
//
// Three independent instances act as the classifier, the discriminator and the
// style mapping (the latter with K = style dimension).
type DenseModel[B tensor.Backend] struct {
	net        *nn.Sequential[B]
	inputShape [3]int
	numClasses int
}

// NewDenseModel creates a DenseModel for [C, H, W] inputs with numClasses outputs.
// A nil hidden uses DefaultHidden.
func NewDenseModel[B tensor.Backend](inputShape [3]int, numClasses int, hidden []int, rng *rand.Rand, backend B) (*DenseModel[B], error) {
	in := inputShape[0] * inputShape[1] * inputShape[2]
	if in <= 0 || numClasses <= 0 {
		return nil, fmt.Errorf("model: invalid dense model input %v with %d classes", inputShape, numClasses)
	}
	if hidden == nil {
		hidden = DefaultHidden
	}

	net := nn.NewSequential[B](nn.NewFlatten[B]())
	width := in
	for _, h := range hidden {
		if h <= 0 {
			return nil, fmt.Errorf("model: invalid hidden width %d", h)
		}
		net.Add(nn.NewLinear(width, h, rng, backend))
		net.Add(nn.NewReLU[B]())
		width = h
	}
	net.Add(nn.NewLinear(width, numClasses, rng, backend))

	return &DenseModel[B]{net: net, inputShape: inputShape, numClasses: numClasses}, nil
}

// Forward maps images [N, C, H, W] to logits [N, K].
func (m *DenseModel[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != m.inputShape[0] || shape[2] != m.inputShape[1] || shape[3] != m.inputShape[2] {
		panic(fmt.Sprintf("DenseModel: expected input [N %d %d %d], got %v",
			m.inputShape[0], m.inputShape[1], m.inputShape[2], shape))
	}
	return m.net.Forward(input)
}

// Parameters returns all trainable parameters.
func (m *DenseModel[B]) Parameters() []*nn.Parameter[B] {
	return m.net.Parameters()
}

// NumClasses returns the output width.
func (m *DenseModel[B]) NumClasses() int { return m.numClasses }

// InputShape returns the configured [C, H, W].
func (m *DenseModel[B]) InputShape() [3]int { return m.inputShape }
