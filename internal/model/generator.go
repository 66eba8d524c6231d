package model

import (
	"fmt"

	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// Generator translates a source image into the style of a style image.
//
// The style mapping embeds the style image into S values, which are broadcast
// to an [N, S, H, W] map, concatenated with the source along channels and fed
// through the UNet. The output has the shape of the source.
type Generator[B tensor.Backend] struct {
	unet  *UNet[B]
	style *DenseModel[B]
}

// NewGenerator combines a UNet and a style mapping. The UNet must take C + S
// channels and return C, where C is the style mapping's image channel count and
// S its output width.
func NewGenerator[B tensor.Backend](unet *UNet[B], style *DenseModel[B]) (*Generator[B], error) {
	c := style.InputShape()[0]
	cfg := unet.Config()
	if cfg.InChannels != c+style.NumClasses() {
		return nil, fmt.Errorf("%w: unet takes %d channels, image %d + style %d",
			ErrShapeMismatch, cfg.InChannels, c, style.NumClasses())
	}
	if cfg.OutChannels != c {
		return nil, fmt.Errorf("%w: unet returns %d channels, image has %d", ErrShapeMismatch, cfg.OutChannels, c)
	}
	shape := style.InputShape()
	if err := unet.CheckSpatial(shape[1], shape[2]); err != nil {
		return nil, err
	}
	return &Generator[B]{unet: unet, style: style}, nil
}

// Generate returns the translation of source into the style of style. Both
// must be [N, C, H, W] batches of the configured image shape.
func (g *Generator[B]) Generate(source, style *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if err := g.CheckInputs(source.Shape(), style.Shape()); err != nil {
		return nil, err
	}

	shape := source.Shape()
	n, h, w := shape[0], shape[2], shape[3]
	s := g.style.NumClasses()

	// [N, S] -> [N, S, 1, 1] -> [N, S, H, W]
	embedding := g.style.Forward(style)
	styleMap := tensor.Expand(embedding.Reshape(n, s, 1, 1), tensor.Shape{n, s, h, w})
	x := tensor.Cat([]*tensor.Tensor[float32, B]{source, styleMap}, 1)
	return g.unet.Forward(x), nil
}

// CheckInputs validates a (source, style) shape pair without running the networks.
func (g *Generator[B]) CheckInputs(source, style tensor.Shape) error {
	want := g.style.InputShape()
	if len(source) != 4 || source[1] != want[0] || source[2] != want[1] || source[3] != want[2] {
		return fmt.Errorf("%w: source %v, want [N %d %d %d]", ErrShapeMismatch, source, want[0], want[1], want[2])
	}
	if !source.Equal(style) {
		return fmt.Errorf("%w: source %v, style %v", ErrShapeMismatch, source, style)
	}
	return nil
}

// Parameters returns the UNet parameters followed by the style mapping's.
func (g *Generator[B]) Parameters() []*nn.Parameter[B] {
	return append(g.unet.Parameters(), g.style.Parameters()...)
}

// StyleMapping returns the style embedding network.
func (g *Generator[B]) StyleMapping() *DenseModel[B] { return g.style }

// UNet returns the image network.
func (g *Generator[B]) UNet() *UNet[B] { return g.unet }
