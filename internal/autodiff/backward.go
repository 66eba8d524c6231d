package autodiff

import "github.com/born-ml/dac/internal/tensor"

// BackwardCapable is a backend that owns a GradientTape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// Backward differentiates t against everything on the backend's tape,
// seeding the output gradient with ones. It panics when nothing was
// recorded, which almost always means recording was never started.
//
//	backend.Tape().StartRecording()
//	y := x.Mul(x).Sum()
//	grads := autodiff.Backward(y, backend) // grads[x.Raw()] == 2x
func Backward[B BackwardCapable](t *tensor.Tensor[float32, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("autodiff: Backward with an empty tape; start recording first")
	}
	seed := tensor.MustRaw(t.Shape(), tensor.Float32, backend.Device())
	for i := range seed.AsFloat32() {
		seed.AsFloat32()[i] = 1
	}
	return tape.Backward(t.Raw(), seed, backend)
}

// ValueAndGrad evaluates f on a cleared, recording tape and returns its
// value with the gradients of every recorded input. The tape is cleared
// again afterwards and its recording state restored, so two calls never
// share a graph.
//
//	loss, grads := autodiff.ValueAndGrad(backend, func() *tensor.Tensor[float32, B] {
//	    return criterion.Forward(model.Forward(x), y)
//	})
//	optimizer.Step(grads)
func ValueAndGrad[B BackwardCapable](
	backend B,
	f func() *tensor.Tensor[float32, B],
) (*tensor.Tensor[float32, B], map[*tensor.RawTensor]*tensor.RawTensor) {
	tape := backend.GetTape()
	defer func(was bool) {
		tape.Clear()
		if !was {
			tape.StopRecording()
		}
	}(tape.IsRecording())

	tape.Clear()
	tape.StartRecording()
	value := f()
	return value, Backward(value, backend)
}

// NoGrad runs f with the backend's tape paused. Backends without a tape
// run f as is.
func NoGrad(backend any, f func()) {
	if bc, ok := backend.(interface{ GetTape() *GradientTape }); ok && bc.GetTape().IsRecording() {
		tape := bc.GetTape()
		tape.StopRecording()
		defer tape.StartRecording()
	}
	f()
}
