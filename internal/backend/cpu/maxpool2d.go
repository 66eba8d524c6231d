package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/dac/internal/parallel"
	"github.com/born-ml/dac/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolGeometry("maxpool2d", input, kernelSize, stride)

	output := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut}, tensor.Float32, cpu.device)
	src, dst := input.AsFloat32(), output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		out := dst[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				idx := windowArgmax(plane, W, oh*stride, ow*stride, kernelSize)
				out[oh*WOut+ow] = plane[idx]
			}
		}
	}, cpu.batchConfig())

	return output
}

// MaxPool2DBackward routes each output gradient to the input position that held the
// window maximum. Ties go to the first position in row-major order.
func (cpu *CPUBackend) MaxPool2DBackward(input, grad *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	N, C, H, W, HOut, WOut := poolGeometry("maxpool2d_backward", input, kernelSize, stride)
	if want := (tensor.Shape{N, C, HOut, WOut}); !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("maxpool2d_backward: grad shape %v, expected %v", grad.Shape(), want))
	}

	dInput := tensor.MustRaw(input.Shape(), tensor.Float32, cpu.device)
	src, g, dst := input.AsFloat32(), grad.AsFloat32(), dInput.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := src[(n*C+c)*H*W : (n*C+c+1)*H*W]
		dPlane := dst[(n*C+c)*H*W : (n*C+c+1)*H*W]
		gPlane := g[(n*C+c)*HOut*WOut : (n*C+c+1)*HOut*WOut]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				idx := windowArgmax(plane, W, oh*stride, ow*stride, kernelSize)
				dPlane[idx] += gPlane[oh*WOut+ow]
			}
		}
	}, cpu.batchConfig())

	return dInput
}

func poolGeometry(op string, input *tensor.RawTensor, kernelSize, stride int) (n, c, h, w, hOut, wOut int) {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(shape)))
	}
	if input.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 supported, got %s", op, input.DType()))
	}
	if kernelSize <= 0 || stride <= 0 {
		panic(fmt.Sprintf("%s: invalid kernel size %d or stride %d", op, kernelSize, stride))
	}

	n, c, h, w = shape[0], shape[1], shape[2], shape[3]
	if kernelSize > h || kernelSize > w {
		panic(fmt.Sprintf("%s: kernel size %d too large for input %dx%d", op, kernelSize, h, w))
	}
	hOut = (h-kernelSize)/stride + 1
	wOut = (w-kernelSize)/stride + 1
	return n, c, h, w, hOut, wOut
}

// windowArgmax returns the plane offset of the maximum in the k x k window at (h0, w0).
func windowArgmax(plane []float32, width, h0, w0, k int) int {
	best := -1
	maxVal := float32(math.Inf(-1))
	for kh := 0; kh < k; kh++ {
		row := (h0 + kh) * width
		for kw := 0; kw < k; kw++ {
			if v := plane[row+w0+kw]; best < 0 || v > maxVal {
				best, maxVal = row+w0+kw, v
			}
		}
	}
	return best
}
