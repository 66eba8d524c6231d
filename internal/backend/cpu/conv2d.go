package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/dac/internal/parallel"
	"github.com/born-ml/dac/internal/tensor"
)

// convGeometry holds the dimensions of one Conv2D call.
type convGeometry struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding int
}

// patches is the number of output positions per image.
func (g convGeometry) patches() int { return g.HOut * g.WOut }

// colWidth is the length of one flattened receptive field.
func (g convGeometry) colWidth() int { return g.CIn * g.KH * g.KW }

func newConvGeometry(op string, input, kernel *tensor.RawTensor, stride, padding int) convGeometry {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if input.DType() != tensor.Float32 || kernel.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 supported", op))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d or padding %d", op, stride, padding))
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	if g.CIn != kernelShape[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, g.CIn, kernelShape[1]))
	}

	// out = (in + 2*padding - k) / stride + 1
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Algorithm: Im2col
//  1. Transform input patches into columns: [N*H_out*W_out, C_in*K_h*K_w]
//  2. SGEMM with the kernel viewed as [C_out, C_in*K_h*K_w]
//  3. Rearrange the [N*H_out*W_out, C_out] product to [N, C_out, H_out, W_out]
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input, kernel, stride, padding)
	rows := g.N * g.patches()

	cols := make([]float32, rows*g.colWidth())
	cpu.im2col(cols, input.AsFloat32(), g)

	prod := make([]float32, rows*g.COut)
	gemm(blas.NoTrans, blas.Trans,
		general(cols, rows, g.colWidth()),
		general(kernel.AsFloat32(), g.COut, g.colWidth()),
		general(prod, rows, g.COut))

	output := tensor.MustRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, tensor.Float32, cpu.device)
	out := output.AsFloat32()
	p := g.patches()
	for n := 0; n < g.N; n++ {
		for pos := 0; pos < p; pos++ {
			row := prod[(n*p+pos)*g.COut : (n*p+pos+1)*g.COut]
			for c, v := range row {
				out[(n*g.COut+c)*p+pos] = v
			}
		}
	}
	return output
}

// im2col transforms the input into the column matrix [N*H_out*W_out, C*K_h*K_w].
// Each row holds the receptive field of one output position; out-of-bounds taps
// read as zero padding.
func (cpu *CPUBackend) im2col(cols, input []float32, g convGeometry) {
	colWidth := g.colWidth()
	parallel.For(g.N, func(n int) {
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				hStart := outH*g.stride - g.padding
				wStart := outW*g.stride - g.padding
				bufIdx := ((n*g.HOut+outH)*g.WOut + outW) * colWidth

				for c := 0; c < g.CIn; c++ {
					plane := input[(n*g.CIn+c)*g.H*g.W:]
					for kh := 0; kh < g.KH; kh++ {
						h := hStart + kh
						for kw := 0; kw < g.KW; kw++ {
							w := wStart + kw
							if h >= 0 && h < g.H && w >= 0 && w < g.W {
								cols[bufIdx] = plane[h*g.W+w]
							} else {
								cols[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
			}
		}
	}, cpu.batchConfig())
}

// batchConfig parallelizes over the batch dimension regardless of its size.
func (cpu *CPUBackend) batchConfig() parallel.Config {
	cfg := cpu.cfg
	cfg.MinChunkSize = 1
	return cfg
}
