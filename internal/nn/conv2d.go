package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dac/internal/tensor"
)

// Conv2D is a 2D convolution over [N, C_in, H, W] inputs producing
// [N, C_out, H', W'] with H' = (H + 2p - k_h)/s + 1 (W' likewise).
//
// Every UNet level uses 3x3 kernels with stride 1 and padding 1, which keeps
// the spatial size:
//
//	conv := nn.NewConv2D(6, 12, 3, 3, 1, 1, true, rng, backend)
//	y := conv.Forward(x) // [N, 6, 28, 28] -> [N, 12, 28, 28]
type Conv2D[B tensor.Backend] struct {
	in, out         int
	kh, kw          int
	stride, padding int

	weight *Parameter[B] // [C_out, C_in, k_h, k_w]
	bias   *Parameter[B] // [C_out], nil without bias

	backend B
}

// NewConv2D creates a Conv2D layer with Xavier weights (fan in C_in*k_h*k_w,
// fan out C_out*k_h*k_w) and a zero bias. It panics on invalid geometry.
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	switch {
	case inChannels <= 0 || outChannels <= 0:
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	case kernelH <= 0 || kernelW <= 0:
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	case stride <= 0:
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	case padding < 0:
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	area := kernelH * kernelW
	c := &Conv2D[B]{
		in: inChannels, out: outChannels,
		kh: kernelH, kw: kernelW,
		stride: stride, padding: padding,
		weight: NewParameter("conv2d.weight", Xavier(inChannels*area, outChannels*area,
			tensor.Shape{outChannels, inChannels, kernelH, kernelW}, rng, backend)),
		backend: backend,
	}
	if useBias {
		c.bias = NewParameter("conv2d.bias", Zeros(tensor.Shape{outChannels}, backend))
	}
	return c
}

// Forward convolves x and adds the bias over batch and spatial axes.
func (c *Conv2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if s := x.Shape(); len(s) != 4 || s[1] != c.in {
		panic(fmt.Sprintf("conv2d: expected input [N, %d, H, W], got %v", c.in, s))
	}
	y := tensor.New[float32, B](c.backend.Conv2D(x.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding), c.backend)
	if c.bias != nil {
		y = y.Add(c.bias.Tensor().Reshape(1, c.out, 1, 1))
	}
	return y
}

// Parameters returns [weight, bias], or [weight] without bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias == nil {
		return []*Parameter[B]{c.weight}
	}
	return []*Parameter[B]{c.weight, c.bias}
}

func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v)",
		c.in, c.out, c.kh, c.kw, c.stride, c.padding, c.bias != nil)
}

// InChannels returns C_in.
func (c *Conv2D[B]) InChannels() int { return c.in }

// OutChannels returns C_out.
func (c *Conv2D[B]) OutChannels() int { return c.out }

// ComputeOutputSize returns [H', W'] for an H x W input.
func (c *Conv2D[B]) ComputeOutputSize(h, w int) [2]int {
	return [2]int{(h+2*c.padding-c.kh)/c.stride + 1, (w+2*c.padding-c.kw)/c.stride + 1}
}
