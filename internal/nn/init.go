package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/dac/internal/tensor"
)

// Xavier returns a tensor of shape drawn from the Glorot uniform distribution
// U(-a, a) with a = sqrt(6 / (fanIn + fanOut)). Equal seeds give equal weights.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	a := math.Sqrt(6 / float64(fanIn+fanOut))
	t := tensor.Zeros[float32](shape, backend)
	for i, data := 0, t.Data(); i < len(data); i++ {
		data[i] = float32(a * (2*rng.Float64() - 1))
	}
	return t
}

// Zeros returns a zero float32 tensor, used for biases.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
