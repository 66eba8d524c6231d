package tensor

import "fmt"

// Tensor pairs typed storage with the backend that computes on it.
//
//	backend := autodiff.New(cpu.New())
//	x := tensor.Zeros[float32](tensor.Shape{4, 3, 28, 28}, backend)
//	y := x.AddScalar(1)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps raw. It panics when raw does not hold elements of type T.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	if want := dataTypeOf[T](); raw.DType() != want {
		panic(fmt.Sprintf("tensor: cannot wrap %s storage as %s", raw.DType(), want))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	raw, err := NewRaw(shape, dataTypeOf[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

func (t *Tensor[T, B]) Shape() Shape     { return t.raw.Shape() }
func (t *Tensor[T, B]) DType() DataType  { return t.raw.DType() }
func (t *Tensor[T, B]) Device() Device   { return t.raw.Device() }
func (t *Tensor[T, B]) NumElements() int { return t.raw.NumElements() }

// Raw returns the storage shared with the backend.
func (t *Tensor[T, B]) Raw() *RawTensor { return t.raw }

// Backend returns the backend t computes on.
func (t *Tensor[T, B]) Backend() B { return t.backend }

// Data is a live view of the storage. Writing through it changes the tensor
// without the autodiff tape noticing.
func (t *Tensor[T, B]) Data() []T {
	if t.raw.DType() == Int32 {
		return any(t.raw.AsInt32()).([]T)
	}
	return any(t.raw.AsFloat32()).([]T)
}

// Item returns the only element of a one-element tensor.
func (t *Tensor[T, B]) Item() T {
	if t.NumElements() != 1 {
		panic(fmt.Sprintf("tensor: Item on shape %v", t.Shape()))
	}
	return t.Data()[0]
}

// At returns the element at the given multi-index.
func (t *Tensor[T, B]) At(indices ...int) T {
	shape := t.Shape()
	if len(indices) != len(shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(indices), len(shape)))
	}
	var off int
	for i, idx := range indices {
		if idx < 0 || idx >= shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range [0, %d) in dimension %d", idx, shape[i], i))
		}
		off += idx * t.raw.Strides()[i]
	}
	return t.Data()[off]
}

func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", t.DType(), t.Shape(), t.Device())
}

// Clone deep-copies the storage and keeps the backend.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return &Tensor[T, B]{raw: t.raw.Clone(), backend: t.backend}
}

// Detach returns a copy that no recorded operation refers to, so gradients
// flowing into it stop there.
//
//	dFake := discriminator.Forward(xFake.Detach())
func (t *Tensor[T, B]) Detach() *Tensor[T, B] { return t.Clone() }
