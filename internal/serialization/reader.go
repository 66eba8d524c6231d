package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
)

// Checkpoint is a decoded checkpoint file.
type Checkpoint struct {
	Header  Header
	Tensors []Tensor
}

// Read decodes a checkpoint and verifies its checksum.
func Read(r io.Reader) (*Checkpoint, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("serialization: read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[8:16])
	dataSize := binary.LittleEndian.Uint64(fixed[16:24])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("serialization: read header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("serialization: parse header: %w", err)
	}
	//nolint:gosec // G115: dataSize is bounded by the validated tensor sizes below
	if err := header.validate(int64(dataSize)); err != nil {
		return nil, err
	}

	padding := padTo(FixedHeaderSize+int(headerSize), HeaderAlignment)
	if _, err := io.CopyN(io.Discard, r, int64(padding)); err != nil {
		return nil, fmt.Errorf("serialization: read padding: %w", err)
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("serialization: read data: %w", err)
	}
	if sum := sha256.Sum256(data); string(sum[:]) != string(fixed[checksumOffset:checksumOffset+checksumSize]) {
		return nil, ErrChecksumMismatch
	}

	ck := &Checkpoint{Header: header, Tensors: make([]Tensor, len(header.Tensors))}
	for i, meta := range header.Tensors {
		raw := data[meta.Offset : meta.Offset+meta.Size]
		values := make([]float32, meta.Size/4)
		for j := range values {
			values[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*j:]))
		}
		ck.Tensors[i] = Tensor{Name: meta.Name, Shape: meta.Shape, Data: values}
	}
	return ck, nil
}

// ReadFile reads the checkpoint at path.
func ReadFile(path string) (*Checkpoint, error) {
	//nolint:gosec // G304: checkpoint paths come from the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("serialization: %w", err)
	}
	defer f.Close()
	return Read(f)
}
