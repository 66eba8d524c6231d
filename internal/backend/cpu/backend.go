// Package cpu is the reference backend. Matrix products (MatMul and the
// im2col form of Conv2D) run on gonum's blas32, and per-plane kernels such
// as pooling and upsampling fan out over internal/parallel.
package cpu

import (
	"fmt"
	"slices"

	"github.com/born-ml/dac/internal/parallel"
	"github.com/born-ml/dac/internal/tensor"
)

// CPUBackend implements tensor.Backend on the host.
type CPUBackend struct {
	device tensor.Device
	cfg    parallel.Config
}

// New returns a backend using parallel.DefaultConfig.
func New() *CPUBackend { return &CPUBackend{device: tensor.CPU, cfg: parallel.DefaultConfig()} }

// WithParallel returns a copy of the backend that splits work according to cfg.
func (cpu *CPUBackend) WithParallel(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{device: cpu.device, cfg: cfg}
}

func (cpu *CPUBackend) Name() string          { return "CPU" }
func (cpu *CPUBackend) Device() tensor.Device { return cpu.device }

// Reshape copies t under a new shape with the same element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return t.WithShape(newShape)
}

// Transpose permutes the dimensions of t. Without axes the order is reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	rank := len(shape)
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if sorted := slices.Sorted(slices.Values(axes)); len(axes) != rank ||
		slices.ContainsFunc(sorted, func(ax int) bool { return ax < 0 || ax >= rank }) ||
		len(slices.Compact(sorted)) != rank {
		panic(fmt.Sprintf("transpose: %v is not a permutation of %d axes", axes, rank))
	}

	out := make(tensor.Shape, rank)
	for i, ax := range axes {
		out[i] = shape[ax]
	}
	strides := t.Strides()
	idx := make([]int, out.NumElements())
	forEachIndex(out, func(flat int, coords []int) {
		for i, ax := range axes {
			idx[flat] += coords[i] * strides[ax]
		}
	})
	return gather(t, out, idx, cpu.device)
}
