package data

import (
	"fmt"
	"math"
	"math/rand"
)

// Colormap maps t in [0, 1] to an RGB colour.
type Colormap func(t float64) [3]float32

// The four class colormaps, after the matplotlib maps of the same name.
var (
	Spring Colormap = func(t float64) [3]float32 { return rgb(1, t, 1-t) }
	Summer Colormap = func(t float64) [3]float32 { return rgb(t, 0.5+0.5*t, 0.4) }
	Autumn Colormap = func(t float64) [3]float32 { return rgb(1, t, 0) }
	Winter Colormap = func(t float64) [3]float32 { return rgb(0, t, 1-0.5*t) }
)

// ClassNames are the labels of ColoredShapes in class order.
var ClassNames = []string{"spring", "summer", "autumn", "winter"}

var classColormaps = []Colormap{Spring, Summer, Autumn, Winter}

func rgb(r, g, b float64) [3]float32 {
	return [3]float32{float32(r), float32(g), float32(b)}
}

// ShapesConfig configures NewColoredShapes.
type ShapesConfig struct {
	Samples int   // number of samples
	Size    int   // image height and width
	Strokes int   // line segments per glyph
	Seed    int64 // generator seed
}

// DefaultShapesConfig mirrors the 3x28x28 colour-MNIST layout.
func DefaultShapesConfig() ShapesConfig {
	return ShapesConfig{Samples: 1024, Size: 28, Strokes: 3, Seed: 0}
}

// ColoredShapes is a synthetic four-class colour dataset: each sample is a random
// white-on-black stroke glyph tinted with a colour drawn from its class colormap.
// The class is carried only by the colour, never by the glyph shape.
type ColoredShapes struct {
	*Materialized
}

// NewColoredShapes deterministically generates cfg.Samples images from cfg.Seed.
func NewColoredShapes(cfg ShapesConfig) (*ColoredShapes, error) {
	if cfg.Samples <= 0 || cfg.Size < 4 || cfg.Strokes <= 0 {
		return nil, fmt.Errorf("data: invalid shapes config %+v", cfg)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	size := cfg.Size
	samples := make([]Sample, cfg.Samples)
	for i := range samples {
		label := rng.Intn(len(classColormaps))
		colour := classColormaps[label](rng.Float64())
		glyph := strokeGlyph(rng, size, cfg.Strokes)

		img := make([]float32, 3*size*size)
		for c := 0; c < 3; c++ {
			plane := img[c*size*size : (c+1)*size*size]
			for p, v := range glyph {
				plane[p] = v * colour[c]
			}
		}
		samples[i] = Sample{Image: img, Label: label}
	}

	m, err := NewMaterialized(samples, 3, size, size, len(classColormaps))
	if err != nil {
		return nil, err
	}
	return &ColoredShapes{Materialized: m}, nil
}

// strokeGlyph draws a connected polyline of strokes segments with unit intensity.
func strokeGlyph(rng *rand.Rand, size, strokes int) []float32 {
	glyph := make([]float32, size*size)
	margin := float64(size) / 5
	span := float64(size) - 2*margin
	point := func() (float64, float64) {
		return margin + rng.Float64()*span, margin + rng.Float64()*span
	}
	thickness := math.Max(1, float64(size)/14)

	x0, y0 := point()
	for s := 0; s < strokes; s++ {
		x1, y1 := point()
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				if segmentDistance(float64(x), float64(y), x0, y0, x1, y1) <= thickness {
					glyph[y*size+x] = 1
				}
			}
		}
		x0, y0 = x1, y1
	}
	return glyph
}

func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	length2 := dx*dx + dy*dy
	t := 0.0
	if length2 > 0 {
		t = math.Max(0, math.Min(1, ((px-ax)*dx+(py-ay)*dy)/length2))
	}
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// Solid is a perfectly separable toy dataset: every image of class k is filled
// with the constant colour colours[k].
type Solid struct {
	*Materialized
}

// NewSolid builds perClass images of size h x w for each colour, interleaving
// classes (sample i has label i % len(colours)).
func NewSolid(colours [][3]float32, perClass, h, w int) (*Solid, error) {
	if len(colours) == 0 || perClass <= 0 {
		return nil, fmt.Errorf("%w: %d colours, %d per class", ErrEmpty, len(colours), perClass)
	}

	samples := make([]Sample, 0, len(colours)*perClass)
	for i := 0; i < perClass; i++ {
		for label, colour := range colours {
			img := make([]float32, 3*h*w)
			for c := 0; c < 3; c++ {
				for p := 0; p < h*w; p++ {
					img[c*h*w+p] = colour[c]
				}
			}
			samples = append(samples, Sample{Image: img, Label: label})
		}
	}

	m, err := NewMaterialized(samples, 3, h, w, len(colours))
	if err != nil {
		return nil, err
	}
	return &Solid{Materialized: m}, nil
}
