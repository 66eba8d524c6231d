package tensor

import "fmt"

// Device names where a tensor's storage lives. Only the CPU exists.
type Device int

const CPU Device = 0

func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return fmt.Sprintf("Device(%d)", int(d))
}

// RawTensor is the untyped, contiguous, row-major storage that backends
// consume and produce.
//
// Backend kernels always return a fresh RawTensor. The autodiff tape keys
// gradients by RawTensor pointer, so in-place writes are reserved for
// optimizers and freshly allocated tensors.
type RawTensor struct {
	shape   Shape
	strides []int
	dtype   DataType
	device  Device
	f32     []float32
	i32     []int32
}

// NewRaw allocates a zeroed tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	r := &RawTensor{shape: shape.Clone(), strides: shape.ComputeStrides(), dtype: dtype, device: device}
	switch n := shape.NumElements(); dtype {
	case Float32:
		r.f32 = make([]float32, n)
	case Int32:
		r.i32 = make([]int32, n)
	default:
		return nil, fmt.Errorf("tensor: unsupported data type %v", dtype)
	}
	return r, nil
}

// MustRaw is NewRaw for shapes that are valid by construction, such as
// kernel outputs.
func MustRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// RawFromFloat32 copies data into a new float32 tensor of the given shape.
func RawFromFloat32(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if err := checkLen(shape, len(data)); err != nil {
		return nil, err
	}
	r, err := NewRaw(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	copy(r.f32, data)
	return r, nil
}

func checkLen(shape Shape, n int) error {
	if want := shape.NumElements(); want != n {
		return fmt.Errorf("tensor: shape %v holds %d elements, got %d", shape, want, n)
	}
	return nil
}

func (r *RawTensor) Shape() Shape     { return r.shape }
func (r *RawTensor) Strides() []int   { return r.strides }
func (r *RawTensor) DType() DataType  { return r.dtype }
func (r *RawTensor) Device() Device   { return r.device }
func (r *RawTensor) NumElements() int { return len(r.f32) + len(r.i32) }
func (r *RawTensor) String() string   { return fmt.Sprintf("RawTensor[%s]%v", r.dtype, r.shape) }

// AsFloat32 exposes the float32 storage and panics for any other dtype.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor: %s storage read as float32", r.dtype))
	}
	return r.f32
}

// AsInt32 exposes the int32 storage and panics for any other dtype.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor: %s storage read as int32", r.dtype))
	}
	return r.i32
}

// WithShape copies r into a new tensor of the given shape. The element
// counts must agree.
func (r *RawTensor) WithShape(shape Shape) *RawTensor {
	if shape.NumElements() != r.NumElements() {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", r.shape, shape))
	}
	out := MustRaw(shape, r.dtype, r.device)
	copy(out.f32, r.f32)
	copy(out.i32, r.i32)
	return out
}

// Clone deep-copies r.
func (r *RawTensor) Clone() *RawTensor { return r.WithShape(r.shape) }
