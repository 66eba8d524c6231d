// Package autodiff adds reverse-mode differentiation to any tensor.Backend.
//
// AutodiffBackend decorates a backend: every kernel runs on the wrapped
// backend, and while the GradientTape is recording the call is appended to
// the tape as an ops.Operation that knows its own backward rule.
//
//	backend := autodiff.New(cpu.New())
//	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	_, grads := autodiff.ValueAndGrad(backend, func() *tensor.Tensor[float32, B] {
//	    return x.Mul(x).Sum()
//	})
//	grads[x.Raw()].AsFloat32() // [4]
//
// Gradients live in the returned map, keyed by RawTensor pointer, and are
// never stored on tensors. An optimizer picks out the entries of the
// parameters it owns, which keeps the CycleGAN's training phases apart.
package autodiff

import (
	"github.com/born-ml/dac/internal/autodiff/ops"
	"github.com/born-ml/dac/internal/tensor"
)

// AutodiffBackend records differentiable kernels of B on a GradientTape.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps backend with a fresh, paused tape.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape exposes the tape for manual recording control.
func (b *AutodiffBackend[B]) Tape() *GradientTape { return b.tape }

// GetTape satisfies BackwardCapable.
func (b *AutodiffBackend[B]) GetTape() *GradientTape { return b.tape }

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B { return b.inner }

func (b *AutodiffBackend[B]) Name() string          { return "Autodiff(" + b.inner.Name() + ")" }
func (b *AutodiffBackend[B]) Device() tensor.Device { return b.inner.Device() }

// keep records op when the tape is on and hands back its output.
func (b *AutodiffBackend[B]) keep(out *tensor.RawTensor, op ops.Operation) *tensor.RawTensor {
	b.tape.Record(op)
	return out
}
