// Package tensor holds the tensor types that flow through the DAC pipeline.
//
// Images, logits, attribution maps and masks are float32 tensors. Class
// labels and predictions are int32 tensors. Arithmetic is delegated to a
// Backend, so the same Tensor value works on the plain CPU backend and on
// the autodiff wrapper around it.
package tensor

import "fmt"

// DType constrains the Go element types a Tensor may hold.
type DType interface {
	float32 | int32
}

// DataType tags the element type of a RawTensor at run time.
type DataType int

const (
	Float32 DataType = iota
	Int32
)

var dataTypeNames = [...]string{Float32: "float32", Int32: "int32"}

// Size is the width of one element in bytes. Both types are four bytes wide.
func (dt DataType) Size() int {
	if dt != Float32 && dt != Int32 {
		panic(fmt.Sprintf("tensor: no size for data type %d", int(dt)))
	}
	return 4
}

func (dt DataType) String() string {
	if dt < 0 || int(dt) >= len(dataTypeNames) {
		return "unknown"
	}
	return dataTypeNames[dt]
}

// dataTypeOf maps T to its run-time tag.
func dataTypeOf[T DType]() DataType {
	var zero T
	if _, ok := any(zero).(int32); ok {
		return Int32
	}
	return Float32
}
