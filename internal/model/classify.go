package model

import (
	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// Classify returns the arg-max class of m for each image, with tape recording
// paused so the call leaves no graph behind.
func Classify[B tensor.Backend](m nn.Module[B], images *tensor.Tensor[float32, B]) []int {
	var preds []int32
	autodiff.NoGrad(images.Backend(), func() {
		preds = m.Forward(images).Argmax(1).Data()
	})
	out := make([]int, len(preds))
	for i, p := range preds {
		out[i] = int(p)
	}
	return out
}

// Probabilities returns the softmax class distribution of m for each image as
// rows of a [N][K] slice.
func Probabilities[B tensor.Backend](m nn.Module[B], images *tensor.Tensor[float32, B]) [][]float32 {
	var logits *tensor.Tensor[float32, B]
	autodiff.NoGrad(images.Backend(), func() {
		logits = m.Forward(images)
	})

	shape := logits.Shape()
	n, k := shape[0], shape[1]
	data := logits.Data()
	out := make([][]float32, n)
	for i := range out {
		out[i] = ops.Softmax(data[i*k : (i+1)*k])
	}
	return out
}
