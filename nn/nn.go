// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network building blocks of the pipeline:
// layers, losses and the classifier, discriminator and generator models.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	clf, err := nn.NewDenseModel([3]int{3, 28, 28}, 2, nn.DefaultHidden, rng, backend)
package nn

import (
	"math/rand"

	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/tensor"
)

// Module is a network component with trainable parameters.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter wraps t as a named parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Sequential applies modules in order.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential stacks modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Linear is a fully connected layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a Xavier-initialized fully connected layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// NewReLU creates a ReLU activation.
func NewReLU[B tensor.Backend]() *nn.ReLU[B] { return nn.NewReLU[B]() }

// NewSigmoid creates a sigmoid activation.
func NewSigmoid[B tensor.Backend]() *nn.Sigmoid[B] { return nn.NewSigmoid[B]() }

// NewFlatten creates a layer flattening all but the batch dimension.
func NewFlatten[B tensor.Backend]() *nn.Flatten[B] { return nn.NewFlatten[B]() }

// NewCrossEntropyLoss creates a softmax cross-entropy loss.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *nn.CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// NewL1Loss creates a mean absolute error loss.
func NewL1Loss[B tensor.Backend](backend B) *nn.L1Loss[B] { return nn.NewL1Loss(backend) }

// ErrShapeMismatch is returned for inputs of the wrong shape.
var ErrShapeMismatch = model.ErrShapeMismatch

// DefaultHidden are the default hidden layer widths of a DenseModel.
var DefaultHidden = model.DefaultHidden

// DenseModel is a flatten plus MLP image classifier.
type DenseModel[B tensor.Backend] = model.DenseModel[B]

// NewDenseModel creates a DenseModel over images of inputShape (C, H, W).
func NewDenseModel[B tensor.Backend](inputShape [3]int, numClasses int, hidden []int, rng *rand.Rand, backend B) (*DenseModel[B], error) {
	return model.NewDenseModel(inputShape, numClasses, hidden, rng, backend)
}

// UNetConfig configures a UNet.
type UNetConfig = model.UNetConfig

// UNet is the image-to-image network of the generator.
type UNet[B tensor.Backend] = model.UNet[B]

// NewUNet creates a UNet.
func NewUNet[B tensor.Backend](cfg UNetConfig, rng *rand.Rand, backend B) (*UNet[B], error) {
	return model.NewUNet(cfg, rng, backend)
}

// Generator translates an image into the style of a style image.
type Generator[B tensor.Backend] = model.Generator[B]

// NewGenerator combines a UNet and a style mapping.
func NewGenerator[B tensor.Backend](unet *UNet[B], style *DenseModel[B]) (*Generator[B], error) {
	return model.NewGenerator(unet, style)
}

// Classify returns the argmax class of each image.
func Classify[B tensor.Backend](m Module[B], images *tensor.Tensor[float32, B]) []int {
	return model.Classify(m, images)
}

// Probabilities returns the softmax class probabilities of each image.
func Probabilities[B tensor.Backend](m Module[B], images *tensor.Tensor[float32, B]) [][]float32 {
	return model.Probabilities(m, images)
}
