package attribution

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/dac/internal/tensor"
)

// BaselineKind names a reference image construction.
type BaselineKind int

// Baseline kinds. Counterfactual baselines come from the generator and cannot
// be derived from the input alone.
const (
	ZeroBaseline BaselineKind = iota
	UniformBaseline
	BlurBaseline
	CounterfactualBaseline
)

var baselineNames = map[BaselineKind]string{
	ZeroBaseline:           "zero",
	UniformBaseline:        "uniform",
	BlurBaseline:           "blur",
	CounterfactualBaseline: "counterfactual",
}

func (k BaselineKind) String() string {
	if name, ok := baselineNames[k]; ok {
		return name
	}
	return fmt.Sprintf("BaselineKind(%d)", int(k))
}

// ParseBaseline converts a configuration string into a BaselineKind.
func ParseBaseline(s string) (BaselineKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range baselineNames {
		if s == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: baseline %q", ErrUnknownMethod, s)
}

// DefaultBlurKernel is the Gaussian kernel size of the blur baseline.
const DefaultBlurKernel = 5

// Baseline builds a baseline of kind for x. rng is only used by UniformBaseline.
func Baseline[B tensor.Backend](kind BaselineKind, x *tensor.Tensor[float32, B], rng *rand.Rand) (*tensor.Tensor[float32, B], error) {
	switch kind {
	case ZeroBaseline:
		return Zero(x), nil
	case UniformBaseline:
		if rng == nil {
			return nil, fmt.Errorf("attribution: uniform baseline needs a random source")
		}
		return Uniform(x, rng), nil
	case BlurBaseline:
		return Blur(x, DefaultBlurKernel, 0)
	case CounterfactualBaseline:
		return nil, fmt.Errorf("attribution: counterfactual baselines are produced by the generator")
	}
	return nil, fmt.Errorf("%w: baseline %s", ErrUnknownMethod, kind)
}

// Zero returns an all-zero image shaped like x.
func Zero[B tensor.Backend](x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](x.Shape(), x.Backend())
}

// Uniform returns noise drawn from U[0, 1) shaped like x.
func Uniform[B tensor.Backend](x *tensor.Tensor[float32, B], rng *rand.Rand) *tensor.Tensor[float32, B] {
	return tensor.Rand(x.Shape(), rng, x.Backend())
}

// BlurSigma returns the standard deviation used for a kernel of size k when
// none is given.
func BlurSigma(k int) float64 {
	return 0.3*(float64(k-1)/2-1) + 0.8
}

// Blur applies a separable Gaussian blur to every channel of an NCHW batch,
// reflecting at the borders. sigma <= 0 selects BlurSigma(kernel).
func Blur[B tensor.Backend](x *tensor.Tensor[float32, B], kernel int, sigma float64) (*tensor.Tensor[float32, B], error) {
	shape := x.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("attribution: blur expects NCHW input, got %v", shape)
	}
	if kernel < 1 || kernel%2 == 0 {
		return nil, fmt.Errorf("attribution: blur kernel must be odd and positive, got %d", kernel)
	}
	if sigma <= 0 {
		sigma = BlurSigma(kernel)
	}
	weights := gaussianKernel(kernel, sigma)

	h, w := shape[2], shape[3]
	planes := shape[0] * shape[1]
	src := x.Data()
	out := tensor.Zeros[float32](shape, x.Backend())
	dst := out.Data()
	tmp := make([]float64, h*w)
	half := kernel / 2

	for p := 0; p < planes; p++ {
		plane := src[p*h*w : (p+1)*h*w]
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				var acc float64
				for k, wk := range weights {
					acc += wk * float64(plane[i*w+reflect(j+k-half, w)])
				}
				tmp[i*w+j] = acc
			}
		}
		res := dst[p*h*w : (p+1)*h*w]
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				var acc float64
				for k, wk := range weights {
					acc += wk * tmp[reflect(i+k-half, h)*w+j]
				}
				res[i*w+j] = float32(acc)
			}
		}
	}
	return out, nil
}

func gaussianKernel(size int, sigma float64) []float64 {
	half := float64(size-1) / 2
	k := make([]float64, size)
	for i := range k {
		d := float64(i) - half
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// reflect mirrors i into [0, n) without repeating the edge sample.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
