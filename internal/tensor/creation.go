package tensor

import "math/rand"

// Zeros returns a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return New[T, B](MustRaw(shape, dataTypeOf[T](), b.Device()), b)
}

// Ones returns a tensor of ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] { return Full(shape, T(1), b) }

// Full returns a tensor with every element set to value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return fill(Zeros[T](shape, b), func() T { return value })
}

// Rand samples uniformly from [0, 1).
func Rand[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	return fill(Zeros[float32](shape, b), rng.Float32)
}

// Randn samples from the standard normal distribution.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	return fill(Zeros[float32](shape, b), func() float32 { return float32(rng.NormFloat64()) })
}

func fill[T DType, B Backend](t *Tensor[T, B], next func() T) *Tensor[T, B] {
	data := t.Data()
	for i := range data {
		data[i] = next()
	}
	return t
}
