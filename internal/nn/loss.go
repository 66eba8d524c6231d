package nn

import (
	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/tensor"
)

// L1Backend is implemented by backends that compute (and record) the mean
// absolute error.
type L1Backend interface {
	L1(a, b *tensor.RawTensor) *tensor.RawTensor
}

// L1Loss computes the mean absolute error.
//
// Loss = mean(|predictions - targets|)
//
// The CycleGAN uses it as the cycle-consistency loss between an image and its
// reconstruction.
type L1Loss[B tensor.Backend] struct {
	backend B
}

// NewL1Loss creates a new L1 loss function.
func NewL1Loss[B tensor.Backend](backend B) *L1Loss[B] {
	return &L1Loss[B]{
		backend: backend,
	}
}

// Forward computes the L1 loss. Returns a tensor of shape [1].
func (l *L1Loss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("L1Loss: predictions and targets must have the same shape")
	}

	if adBackend, ok := any(l.backend).(L1Backend); ok {
		return tensor.New[float32, B](adBackend.L1(predictions.Raw(), targets.Raw()), l.backend)
	}

	return tensor.New[float32, B](ops.L1Forward(predictions.Raw(), targets.Raw(), l.backend.Device()), l.backend)
}

// Parameters returns an empty slice (loss functions have no trainable parameters).
func (l *L1Loss[B]) Parameters() []*Parameter[B] {
	return nil
}
