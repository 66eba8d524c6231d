package ops

import "github.com/born-ml/dac/internal/tensor"

// Conv2DOp is a 2D cross-correlation over [N, C, H, W] inputs with a
// [C_out, C_in, K, K] kernel.
type Conv2DOp struct {
	node
	stride, padding int
}

// NewConv2DOp records output = conv2d(input, kernel).
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{node: edges(output, input, kernel), stride: stride, padding: padding}
}

// Backward returns the input and kernel gradients computed by the backend.
func (op *Conv2DOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	input, kernel := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(input, kernel, g, op.stride, op.padding),
		backend.Conv2DKernelBackward(input, kernel, g, op.stride, op.padding),
	}
}

// MaxPool2DOp is max pooling over square windows.
type MaxPool2DOp struct {
	node
	kernel, stride int
}

// NewMaxPool2DOp records output = maxpool2d(input).
func NewMaxPool2DOp(input, output *tensor.RawTensor, kernelSize, stride int) *MaxPool2DOp {
	return &MaxPool2DOp{node: edges(output, input), kernel: kernelSize, stride: stride}
}

// Backward routes each window gradient to the position of its maximum.
func (op *MaxPool2DOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPool2DBackward(op.inputs[0], g, op.kernel, op.stride)}
}

// Upsample2DOp is nearest-neighbour upsampling by an integer factor.
type Upsample2DOp struct {
	node
	scale int
}

// NewUpsample2DOp records output = upsample2d(input, scale).
func NewUpsample2DOp(input, output *tensor.RawTensor, scale int) *Upsample2DOp {
	return &Upsample2DOp{node: edges(output, input), scale: scale}
}

// Backward sums the gradient over each scale x scale block.
func (op *Upsample2DOp) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Upsample2DBackward(g, op.scale)}
}
