package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dac/internal/tensor"
)

// Linear is a fully connected layer y = x Wᵀ + b on [N, in] inputs.
//
// W has shape [out, in] and is Xavier initialized; b has shape [out] and starts
// at zero. The dense classifier, the discriminator and the style mapping are
// stacks of Linear layers.
//
//	layer := nn.NewLinear(784, 120, rand.New(rand.NewSource(0)), backend)
//	y := layer.Forward(x) // [32, 784] -> [32, 120]
type Linear[B tensor.Backend] struct {
	in, out int
	weight  *Parameter[B]
	bias    *Parameter[B]
}

// NewLinear creates a Linear layer. It panics on non-positive sizes.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}
	return &Linear[B]{
		in:     inFeatures,
		out:    outFeatures,
		weight: NewParameter("weight", Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, rng, backend)),
		bias:   NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend)),
	}
}

// Forward maps [N, in] to [N, out].
func (l *Linear[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if s := x.Shape(); len(s) != 2 || s[1] != l.in {
		panic(fmt.Sprintf("linear: expected input [N, %d], got %v", l.in, s))
	}
	return x.MatMul(l.weight.Tensor().T()).Add(l.bias.Tensor().Reshape(1, l.out))
}

// Parameters returns [weight, bias].
func (l *Linear[B]) Parameters() []*Parameter[B] { return []*Parameter[B]{l.weight, l.bias} }

// Weight returns the [out, in] weight.
func (l *Linear[B]) Weight() *Parameter[B] { return l.weight }

// Bias returns the [out] bias.
func (l *Linear[B]) Bias() *Parameter[B] { return l.bias }

// InFeatures returns the input width.
func (l *Linear[B]) InFeatures() int { return l.in }

// OutFeatures returns the output width.
func (l *Linear[B]) OutFeatures() int { return l.out }
