package tensor

// Backend is the kernel set a model needs. Kernels never write to their
// inputs and always allocate the result.
//
// The autodiff package decorates a Backend and records every call that has
// a gradient, which is why backward kernels for convolution and resampling
// live on this interface too.
type Backend interface {
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	MulScalar(x *RawTensor, scalar float32) *RawTensor
	AddScalar(x *RawTensor, scalar float32) *RawTensor

	// MatMul is [M, K] x [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Conv2D takes [N, C, H, W] inputs and [Cout, Cin, Kh, Kw] kernels.
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	MaxPool2D(input *RawTensor, kernelSize, stride int) *RawTensor
	MaxPool2DBackward(input, grad *RawTensor, kernelSize, stride int) *RawTensor
	Upsample2D(input *RawTensor, scale int) *RawTensor
	Upsample2DBackward(grad *RawTensor, scale int) *RawTensor

	Cat(tensors []*RawTensor, dim int) *RawTensor
	Narrow(x *RawTensor, dim, start, length int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor

	// Sum returns a [1] tensor. SumTo folds broadcast dimensions of x so the
	// result has shape. Argmax yields int32 indices.
	Sum(x *RawTensor) *RawTensor
	SumTo(x *RawTensor, shape Shape) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	Name() string
	Device() Device
}
