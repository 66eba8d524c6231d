package model

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// UNetConfig configures NewUNet.
type UNetConfig struct {
	Depth       int // number of resolution levels
	InChannels  int
	OutChannels int
	NumFmaps    int // feature maps at the top level, doubled per level
}

// convBlock is two 3x3 same-padded convolutions, each followed by ReLU.
type convBlock[B tensor.Backend] struct {
	*nn.Sequential[B]
}

func newConvBlock[B tensor.Backend](in, out int, rng *rand.Rand, backend B) convBlock[B] {
	return convBlock[B]{nn.NewSequential[B](
		nn.NewConv2D(in, out, 3, 3, 1, 1, true, rng, backend),
		nn.NewReLU[B](),
		nn.NewConv2D(out, out, 3, 3, 1, 1, true, rng, backend),
		nn.NewReLU[B](),
	)}
}

// UNet is an encoder-decoder with skip connections.
//
// Level i works on NumFmaps*2^i feature maps. Going down halves the resolution
// with a 2x2 max-pool; going up doubles it with nearest upsampling and
// concatenates the skip of the same level along channels. A 1x1 convolution and
// a Sigmoid produce the output, so H and W must be divisible by 2^(Depth-1).
type UNet[B tensor.Backend] struct {
	cfg     UNetConfig
	down    []convBlock[B]
	up      []convBlock[B]
	pool    *nn.MaxPool2D[B]
	upscale *nn.Upsample2D[B]
	head    *nn.Conv2D[B]
	final   *nn.Sigmoid[B]
}

// NewUNet creates a UNet.
func NewUNet[B tensor.Backend](cfg UNetConfig, rng *rand.Rand, backend B) (*UNet[B], error) {
	if cfg.Depth <= 0 || cfg.InChannels <= 0 || cfg.OutChannels <= 0 || cfg.NumFmaps <= 0 {
		return nil, fmt.Errorf("model: invalid unet config %+v", cfg)
	}

	u := &UNet[B]{
		cfg:     cfg,
		pool:    nn.NewMaxPool2D(2, 2, backend),
		upscale: nn.NewUpsample2D(2, backend),
		final:   nn.NewSigmoid[B](),
	}

	in := cfg.InChannels
	for level := 0; level < cfg.Depth; level++ {
		out := cfg.NumFmaps << level
		u.down = append(u.down, newConvBlock(in, out, rng, backend))
		in = out
	}
	// up[i] merges the upsampled level i+1 with the skip of level i.
	for level := 0; level < cfg.Depth-1; level++ {
		out := cfg.NumFmaps << level
		u.up = append(u.up, newConvBlock(out+out*2, out, rng, backend))
	}
	u.head = nn.NewConv2D(cfg.NumFmaps, cfg.OutChannels, 1, 1, 1, 0, true, rng, backend)

	return u, nil
}

// CheckSpatial reports whether h x w can pass through every level.
func (u *UNet[B]) CheckSpatial(h, w int) error {
	factor := 1 << (u.cfg.Depth - 1)
	if h%factor != 0 || w%factor != 0 {
		return fmt.Errorf("%w: spatial size %dx%d not divisible by %d", ErrShapeMismatch, h, w, factor)
	}
	return nil
}

// Forward maps [N, InChannels, H, W] to [N, OutChannels, H, W] in (0, 1).
func (u *UNet[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != u.cfg.InChannels {
		panic(fmt.Sprintf("UNet: expected input [N %d H W], got %v", u.cfg.InChannels, shape))
	}
	if err := u.CheckSpatial(shape[2], shape[3]); err != nil {
		panic(err.Error())
	}

	skips := make([]*tensor.Tensor[float32, B], 0, u.cfg.Depth-1)
	x := input
	for level, block := range u.down {
		if level > 0 {
			x = u.pool.Forward(x)
		}
		x = block.Forward(x)
		if level < u.cfg.Depth-1 {
			skips = append(skips, x)
		}
	}

	for level := u.cfg.Depth - 2; level >= 0; level-- {
		x = u.upscale.Forward(x)
		x = tensor.Cat([]*tensor.Tensor[float32, B]{skips[level], x}, 1)
		x = u.up[level].Forward(x)
	}

	return u.final.Forward(u.head.Forward(x))
}

// Parameters returns all trainable parameters, encoder first.
func (u *UNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, b := range u.down {
		params = append(params, b.Parameters()...)
	}
	for _, b := range u.up {
		params = append(params, b.Parameters()...)
	}
	return append(params, u.head.Parameters()...)
}

// Config returns the configuration the UNet was built with.
func (u *UNet[B]) Config() UNetConfig { return u.cfg }
