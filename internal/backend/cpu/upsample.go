package cpu

import (
	"fmt"

	"github.com/born-ml/dac/internal/parallel"
	"github.com/born-ml/dac/internal/tensor"
)

// Upsample2D performs nearest-neighbour upsampling by an integer scale:
// [N, C, H, W] -> [N, C, H*scale, W*scale].
func (cpu *CPUBackend) Upsample2D(input *tensor.RawTensor, scale int) *tensor.RawTensor {
	N, C, H, W := upsampleGeometry("upsample2d", input.Shape(), scale)
	HOut, WOut := H*scale, W*scale

	output := tensor.MustRaw(tensor.Shape{N, C, HOut, WOut}, tensor.Float32, cpu.device)
	src, dst := input.AsFloat32(), output.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := src[(n*C+c)*H*W:]
		out := dst[(n*C+c)*HOut*WOut:]
		for oh := 0; oh < HOut; oh++ {
			row := plane[(oh/scale)*W:]
			for ow := 0; ow < WOut; ow++ {
				out[oh*WOut+ow] = row[ow/scale]
			}
		}
	}, cpu.batchConfig())

	return output
}

// Upsample2DBackward sums each scale x scale block of grad:
// [N, C, H*scale, W*scale] -> [N, C, H, W].
func (cpu *CPUBackend) Upsample2DBackward(grad *tensor.RawTensor, scale int) *tensor.RawTensor {
	N, C, HOut, WOut := upsampleGeometry("upsample2d_backward", grad.Shape(), scale)
	if HOut%scale != 0 || WOut%scale != 0 {
		panic(fmt.Sprintf("upsample2d_backward: grad %v not divisible by scale %d", grad.Shape(), scale))
	}
	H, W := HOut/scale, WOut/scale

	dInput := tensor.MustRaw(tensor.Shape{N, C, H, W}, tensor.Float32, cpu.device)
	src, dst := grad.AsFloat32(), dInput.AsFloat32()

	parallel.ForBatch(N, C, func(n, c int) {
		plane := src[(n*C+c)*HOut*WOut:]
		out := dst[(n*C+c)*H*W:]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				out[(oh/scale)*W+ow/scale] += plane[oh*WOut+ow]
			}
		}
	}, cpu.batchConfig())

	return dInput
}

func upsampleGeometry(op string, shape tensor.Shape, scale int) (n, c, h, w int) {
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got %dD", op, len(shape)))
	}
	if scale <= 0 {
		panic(fmt.Sprintf("%s: invalid scale %d", op, scale))
	}
	return shape[0], shape[1], shape[2], shape[3]
}
