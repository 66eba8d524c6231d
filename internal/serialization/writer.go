package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Tensor is a named float32 tensor.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Write encodes tensors as a checkpoint of modelType.
func Write(w io.Writer, modelType string, tensors []Tensor, metadata map[string]string) error {
	header := Header{
		FormatVersion: FormatVersion,
		ModelType:     modelType,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(tensors)),
		Metadata:      metadata,
	}

	var data bytes.Buffer
	for _, t := range tensors {
		n := 1
		for _, d := range t.Shape {
			n *= d
		}
		if n != len(t.Data) {
			return fmt.Errorf("serialization: tensor %q has %d values for shape %v", t.Name, len(t.Data), t.Shape)
		}
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   t.Name,
			Shape:  append([]int(nil), t.Shape...),
			Offset: int64(data.Len()),
			Size:   int64(4 * n),
		})
		buf := make([]byte, 4*n)
		for i, v := range t.Data {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
		}
		data.Write(buf)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("serialization: marshal header: %w", err)
	}
	checksum := sha256.Sum256(data.Bytes())

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[8:16], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(data.Len()))
	copy(fixed[checksumOffset:checksumOffset+checksumSize], checksum[:])

	padding := padTo(FixedHeaderSize+len(headerJSON), HeaderAlignment)
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data.Bytes()} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("serialization: write: %w", err)
		}
	}
	return nil
}

// WriteFile writes a checkpoint to path.
func WriteFile(path, modelType string, tensors []Tensor, metadata map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("serialization: %w", err)
	}
	if err := Write(f, modelType, tensors, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func padTo(n, align int) int {
	return (align - n%align) % align
}
