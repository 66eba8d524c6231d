package nn

import (
	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/tensor"
)

// CrossEntropyBackend computes, and on an autodiff backend records,
// cross-entropy from logits and class indices.
type CrossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// CrossEntropyLoss is the batch mean of -log softmax(logits)[target]. It
// trains the classifier and both CycleGAN adversarial terms.
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(model.Forward(x), labels) // [N, K] logits, [N] labels
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates the loss.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward returns the loss as a [1] tensor.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	if ce, ok := any(c.backend).(CrossEntropyBackend); ok {
		return tensor.New[float32, B](ce.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}
	return tensor.New[float32, B](ops.CrossEntropyForward(logits.Raw(), targets.Raw(), c.backend.Device()), c.backend)
}

// Parameters returns nil.
func (c *CrossEntropyLoss[B]) Parameters() []*Parameter[B] { return nil }

// Accuracy returns the share of rows whose arg-max logit equals the target.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float32 {
	pred, want := logits.Argmax(1).Data(), targets.Data()
	if len(pred) == 0 {
		return 0
	}
	correct := 0
	for i, p := range pred {
		if p == want[i] {
			correct++
		}
	}
	return float32(correct) / float32(len(pred))
}
