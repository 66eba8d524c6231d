package autodiff

import (
	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/tensor"
)

// GradientTape is the ordered list of operations recorded while it is
// recording. Each training phase and each attribution step records into a
// freshly cleared tape, so gradients never leak between phases.
type GradientTape struct {
	ops       []ops.Operation
	recording bool
}

// NewGradientTape returns an empty, paused tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{ops: make([]ops.Operation, 0, 64)}
}

// StartRecording resumes recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording pauses recording. Recorded operations are kept.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are being recorded.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op when the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.ops = append(t.ops, op)
	}
}

// Clear drops every recorded operation and keeps the recording state.
func (t *GradientTape) Clear() {
	clear(t.ops)
	t.ops = t.ops[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.ops) }

// Backward seeds root with rootGrad and walks the tape in reverse, applying the
// chain rule. Gradients of tensors used more than once are summed. Tensors that
// do not lead to root get no entry in the result.
//
// Recording is paused while gradients are computed.
func (t *GradientTape) Backward(root, rootGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := map[*tensor.RawTensor]*tensor.RawTensor{root: rootGrad}
	if len(t.ops) == 0 {
		return grads
	}

	defer func(was bool) { t.recording = was }(t.recording)
	t.recording = false

	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		g, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputs := op.Inputs()
		for j, ig := range op.Backward(g, backend) {
			if ig == nil || j >= len(inputs) {
				continue
			}
			if prev, seen := grads[inputs[j]]; seen {
				ig = backend.Add(prev, ig)
			}
			grads[inputs[j]] = ig
		}
	}
	return grads
}
