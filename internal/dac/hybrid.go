package dac

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Hybrid is an image that takes counterfactual pixels where the mask is one.
type Hybrid struct {
	Mask  []float32
	Image []float32
}

// MaskFraction returns the share of pixels taken from the counterfactual.
func (h Hybrid) MaskFraction() float64 {
	if len(h.Mask) == 0 {
		return 0
	}
	return floats.Sum(toFloat64(h.Mask)) / float64(len(h.Mask))
}

// Mask returns 1 where |attr| >= threshold and 0 elsewhere. Any threshold is
// accepted: non-positive thresholds select everything, +Inf selects nothing.
func Mask(attr []float32, threshold float32) []float32 {
	mask := make([]float32, len(attr))
	for i, a := range attr {
		if float32(math.Abs(float64(a))) >= threshold {
			mask[i] = 1
		}
	}
	return mask
}

// MakeHybrid blends image and counterfactual as (1-mask)*image + mask*cf with
// mask = Mask(attr, threshold).
func MakeHybrid(image, counterfactual, attr []float32, threshold float32) (Hybrid, error) {
	if len(image) != len(counterfactual) || len(image) != len(attr) {
		return Hybrid{}, fmt.Errorf("%w: image %d, counterfactual %d, attribution %d",
			ErrLengthMismatch, len(image), len(counterfactual), len(attr))
	}
	if math.IsNaN(float64(threshold)) {
		return Hybrid{}, fmt.Errorf("dac: threshold is NaN")
	}

	mask := Mask(attr, threshold)
	out := make([]float32, len(image))
	for i := range out {
		out[i] = (1-mask[i])*image[i] + mask[i]*counterfactual[i]
	}
	return Hybrid{Mask: mask, Image: out}, nil
}

// NormalizeAttribution divides attr by its largest magnitude so that |a| <= 1.
// An all-zero map is returned as zeros.
func NormalizeAttribution(attr []float32) []float32 {
	out := make([]float32, len(attr))
	if len(attr) == 0 {
		return out
	}
	abs := toFloat64(attr)
	for i := range abs {
		abs[i] = math.Abs(abs[i])
	}
	peak := floats.Max(abs)
	if peak == 0 {
		return out
	}
	for i, a := range attr {
		out[i] = float32(float64(a) / peak)
	}
	return out
}

// L1Distance returns the mean absolute difference of a and b. It panics if
// their lengths differ.
func L1Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("dac: L1Distance of lengths %d and %d", len(a), len(b)))
	}
	if len(a) == 0 {
		return 0
	}
	return floats.Distance(toFloat64(a), toFloat64(b), 1) / float64(len(a))
}

// Thresholds returns n evenly spaced thresholds covering [0, 1].
func Thresholds(n int) []float32 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float32{0}
	}
	span := make([]float64, n)
	floats.Span(span, 0, 1)
	out := make([]float32, n)
	for i, v := range span {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
