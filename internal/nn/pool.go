package nn

import (
	"fmt"

	"github.com/born-ml/dac/internal/tensor"
)

// stateless is embedded by layers that own no trainable parameters.
type stateless[B tensor.Backend] struct{}

// Parameters returns an empty slice.
func (s stateless[B]) Parameters() []*Parameter[B] { return []*Parameter[B]{} }

// MaxPool2D keeps the maximum of every kernel x kernel window of an
// [N, C, H, W] input, moving the window by stride.
//
//	pool := nn.NewMaxPool2D(2, 2, backend) // [N, C, 28, 28] -> [N, C, 14, 14]
type MaxPool2D[B tensor.Backend] struct {
	stateless[B]
	kernel, stride int
	backend        B
}

// NewMaxPool2D panics unless kernelSize and stride are positive.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: kernel %d and stride %d must be positive", kernelSize, stride))
	}
	return &MaxPool2D[B]{kernel: kernelSize, stride: stride, backend: backend}
}

// Forward pools input.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if rank := len(input.Shape()); rank != 4 {
		panic(fmt.Sprintf("maxpool2d: want [N,C,H,W], got rank %d", rank))
	}
	return tensor.New[float32, B](m.backend.MaxPool2D(input.Raw(), m.kernel, m.stride), m.backend)
}

func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d)", m.kernel, m.stride)
}

// Upsample2D repeats every pixel scale times along both spatial axes.
type Upsample2D[B tensor.Backend] struct {
	stateless[B]
	scale   int
	backend B
}

// NewUpsample2D panics unless scale is positive.
func NewUpsample2D[B tensor.Backend](scale int, backend B) *Upsample2D[B] {
	if scale <= 0 {
		panic(fmt.Sprintf("upsample2d: scale %d must be positive", scale))
	}
	return &Upsample2D[B]{scale: scale, backend: backend}
}

// Forward upsamples input with nearest-neighbour interpolation.
func (u *Upsample2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](u.backend.Upsample2D(input.Raw(), u.scale), u.backend)
}
