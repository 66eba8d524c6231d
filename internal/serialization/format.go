package serialization

import (
	"errors"
	"fmt"
	"time"
)

// Format constants.
const (
	MagicBytes      = "DACK"
	FormatVersion   = 1
	FixedHeaderSize = 64
	HeaderAlignment = 64
	checksumOffset  = 0x18
	checksumSize    = 32
)

// Validation limits.
const (
	MaxHeaderSize    = 16 * 1024 * 1024
	MaxTensorCount   = 10_000
	MaxTensorNameLen = 512
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("serialization: invalid magic bytes")
	ErrUnsupportedVersion = errors.New("serialization: unsupported format version")
	ErrChecksumMismatch   = errors.New("serialization: checksum mismatch, file may be corrupted")
	ErrHeaderTooLarge     = errors.New("serialization: header exceeds maximum size")
	ErrParameterMismatch  = errors.New("serialization: checkpoint does not match the model")
)

// Header is the JSON header of a checkpoint.
type Header struct {
	FormatVersion int               `json:"format_version"`
	ModelType     string            `json:"model_type"` // e.g. "classifier", "generator"
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta locates one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Size   int64  `json:"size"`   // bytes
}

// ValidationError describes a malformed header.
type ValidationError struct {
	Type    string
	Tensor  string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("serialization: %s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("serialization: %s: %s", e.Type, e.Details)
}

// validate checks names, sizes and that tensors tile the data section without
// overlapping or running past its end.
func (h *Header) validate(dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{Type: "too_many_tensors", Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount)}
	}

	var end int64
	for _, t := range h.Tensors {
		if t.Name == "" || len(t.Name) > MaxTensorNameLen {
			return &ValidationError{Type: "invalid_name", Tensor: t.Name, Details: fmt.Sprintf("length %d", len(t.Name))}
		}
		elems := int64(1)
		for _, d := range t.Shape {
			if d <= 0 {
				return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprintf("shape %v", t.Shape)}
			}
			elems *= int64(d)
		}
		if t.Size != elems*4 {
			return &ValidationError{Type: "invalid_size", Tensor: t.Name, Details: fmt.Sprintf("%d bytes for shape %v", t.Size, t.Shape)}
		}
		if t.Offset < end {
			return &ValidationError{Type: "offset_overlap", Tensor: t.Name, Details: fmt.Sprintf("offset %d < %d", t.Offset, end)}
		}
		end = t.Offset + t.Size
		if end > dataSize {
			return &ValidationError{Type: "out_of_bounds", Tensor: t.Name, Details: fmt.Sprintf("ends at %d > data size %d", end, dataSize)}
		}
	}
	return nil
}
