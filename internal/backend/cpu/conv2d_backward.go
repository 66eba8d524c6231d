package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/dac/internal/parallel"
	"github.com/born-ml/dac/internal/tensor"
)

// Conv2DInputBackward computes the gradient of Conv2D with respect to its input.
//
//	dCols = grad2 @ kernel          [N*H_out*W_out, C_in*K_h*K_w]
//	dInput = col2im(dCols)          [N, C_in, H, W]
//
// where grad2 is grad rearranged to [N*H_out*W_out, C_out].
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_input_backward", input, kernel, stride, padding)
	checkConvGrad(grad, g)
	rows := g.N * g.patches()

	grad2 := rearrangeGrad(grad.AsFloat32(), g)
	dCols := make([]float32, rows*g.colWidth())
	gemm(blas.NoTrans, blas.NoTrans,
		general(grad2, rows, g.COut),
		general(kernel.AsFloat32(), g.COut, g.colWidth()),
		general(dCols, rows, g.colWidth()))

	dInput := tensor.MustRaw(input.Shape(), tensor.Float32, cpu.device)
	cpu.col2im(dInput.AsFloat32(), dCols, g)
	return dInput
}

// Conv2DKernelBackward computes the gradient of Conv2D with respect to its kernel.
//
//	dKernel = grad2^T @ im2col(input)   [C_out, C_in*K_h*K_w]
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d_kernel_backward", input, kernel, stride, padding)
	checkConvGrad(grad, g)
	rows := g.N * g.patches()

	cols := make([]float32, rows*g.colWidth())
	cpu.im2col(cols, input.AsFloat32(), g)
	grad2 := rearrangeGrad(grad.AsFloat32(), g)

	dKernel := tensor.MustRaw(kernel.Shape(), tensor.Float32, cpu.device)
	gemm(blas.Trans, blas.NoTrans,
		general(grad2, rows, g.COut),
		general(cols, rows, g.colWidth()),
		general(dKernel.AsFloat32(), g.COut, g.colWidth()))
	return dKernel
}

func checkConvGrad(grad *tensor.RawTensor, g convGeometry) {
	want := tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("conv2d backward: grad shape %v, expected %v", grad.Shape(), want))
	}
}

// rearrangeGrad turns [N, C_out, H_out, W_out] into [N*H_out*W_out, C_out].
func rearrangeGrad(grad []float32, g convGeometry) []float32 {
	p := g.patches()
	out := make([]float32, len(grad))
	for n := 0; n < g.N; n++ {
		for c := 0; c < g.COut; c++ {
			src := grad[(n*g.COut+c)*p : (n*g.COut+c+1)*p]
			for pos, v := range src {
				out[(n*p+pos)*g.COut+c] = v
			}
		}
	}
	return out
}

// col2im scatters column gradients back onto the input, accumulating overlapping
// receptive fields. Taps that fell into the padding are dropped.
func (cpu *CPUBackend) col2im(dInput, cols []float32, g convGeometry) {
	colWidth := g.colWidth()
	parallel.For(g.N, func(n int) {
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				hStart := outH*g.stride - g.padding
				wStart := outW*g.stride - g.padding
				bufIdx := ((n*g.HOut+outH)*g.WOut + outW) * colWidth

				for c := 0; c < g.CIn; c++ {
					plane := dInput[(n*g.CIn+c)*g.H*g.W:]
					for kh := 0; kh < g.KH; kh++ {
						h := hStart + kh
						for kw := 0; kw < g.KW; kw++ {
							w := wStart + kw
							if h >= 0 && h < g.H && w >= 0 && w < g.W {
								plane[h*g.W+w] += cols[bufIdx]
							}
							bufIdx++
						}
					}
				}
			}
		}
	}, cpu.batchConfig())
}
