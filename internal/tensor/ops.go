package tensor

import "fmt"

// like wraps a kernel result with t's element type and backend.
func (t *Tensor[T, B]) like(raw *RawTensor) *Tensor[T, B] { return New[T, B](raw, t.backend) }

// Add, Sub and Mul broadcast their operands.
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return t.like(t.backend.Add(t.raw, other.raw))
}

func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return t.like(t.backend.Sub(t.raw, other.raw))
}

func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.like(t.backend.Mul(t.raw, other.raw))
}

func (t *Tensor[T, B]) MulScalar(s float32) *Tensor[T, B] { return t.like(t.backend.MulScalar(t.raw, s)) }
func (t *Tensor[T, B]) AddScalar(s float32) *Tensor[T, B] { return t.like(t.backend.AddScalar(t.raw, s)) }

// MatMul multiplies [M, K] by [K, N].
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return t.like(t.backend.MatMul(t.raw, other.raw))
}

// Reshape keeps the element order and changes the shape.
//
//	flat := x.Reshape(32, 3*28*28)
func (t *Tensor[T, B]) Reshape(shape ...int) *Tensor[T, B] {
	return t.like(t.backend.Reshape(t.raw, Shape(shape)))
}

// Transpose permutes dimensions. No axes reverses them all.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return t.like(t.backend.Transpose(t.raw, axes...))
}

// T transposes a matrix.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if rank := len(t.Shape()); rank != 2 {
		panic(fmt.Sprintf("tensor: T on rank %d", rank))
	}
	return t.Transpose(1, 0)
}

// Sum adds every element into a tensor of shape [1].
func (t *Tensor[T, B]) Sum() *Tensor[T, B] { return t.like(t.backend.Sum(t.raw)) }

// Argmax returns the index of the largest value along dim.
func (t *Tensor[T, B]) Argmax(dim int) *Tensor[int32, B] {
	return New[int32, B](t.backend.Argmax(t.raw, dim), t.backend)
}

// Narrow keeps length entries of dim starting at start.
func (t *Tensor[T, B]) Narrow(dim, start, length int) *Tensor[T, B] {
	return t.like(t.backend.Narrow(t.raw, dim, start, length))
}

// Cat joins tensors along dim. Every other dimension must agree.
//
//	xs := tensor.Cat([]*Tensor[float32, B]{x, styleMap}, 1) // [8, 3+s, 28, 28]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("tensor: Cat of nothing")
	}
	raws := make([]*RawTensor, 0, len(tensors))
	for _, t := range tensors {
		raws = append(raws, t.raw)
	}
	return tensors[0].like(tensors[0].backend.Cat(raws, dim))
}

// Expand broadcasts t up to shape by repeating size-1 dimensions and
// prepending missing ones.
//
//	styleMap := tensor.Expand(style.Reshape(n, s, 1, 1), Shape{n, s, h, w})
func Expand[T DType, B Backend](t *Tensor[T, B], shape Shape) *Tensor[T, B] {
	return t.like(t.backend.Expand(t.raw, shape))
}
