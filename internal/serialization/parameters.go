package serialization

import (
	"fmt"
	"slices"

	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// FromParameters snapshots params as checkpoint tensors.
func FromParameters[B tensor.Backend](params []*nn.Parameter[B]) []Tensor {
	out := make([]Tensor, len(params))
	for i, p := range params {
		t := p.Tensor()
		out[i] = Tensor{
			Name:  parameterName(i, p),
			Shape: slices.Clone([]int(t.Shape())),
			Data:  slices.Clone(t.Data()),
		}
	}
	return out
}

// SaveParameters writes params to path.
func SaveParameters[B tensor.Backend](path, modelType string, params []*nn.Parameter[B], metadata map[string]string) error {
	return WriteFile(path, modelType, FromParameters(params), metadata)
}

// LoadParameters copies the checkpoint at path into params.
func LoadParameters[B tensor.Backend](path, modelType string, params []*nn.Parameter[B]) (*Checkpoint, error) {
	ck, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := Restore(ck, modelType, params); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ck, nil
}

// Restore copies the tensors of ck into params in place. The checkpoint must
// hold exactly the parameters it was saved from, in the same order and with the
// same shapes. An empty modelType skips the model type check.
func Restore[B tensor.Backend](ck *Checkpoint, modelType string, params []*nn.Parameter[B]) error {
	if modelType != "" && ck.Header.ModelType != modelType {
		return fmt.Errorf("%w: model type %q, want %q", ErrParameterMismatch, ck.Header.ModelType, modelType)
	}
	if len(ck.Tensors) != len(params) {
		return fmt.Errorf("%w: %d tensors, model has %d parameters", ErrParameterMismatch, len(ck.Tensors), len(params))
	}

	// Check everything before writing so a mismatch leaves params untouched.
	for i, p := range params {
		src := ck.Tensors[i]
		if name := parameterName(i, p); src.Name != name {
			return fmt.Errorf("%w: tensor %d is %q, want %q", ErrParameterMismatch, i, src.Name, name)
		}
		if !tensor.Shape(src.Shape).Equal(p.Tensor().Shape()) {
			return fmt.Errorf("%w: %q has shape %v, want %v", ErrParameterMismatch, src.Name, src.Shape, p.Tensor().Shape())
		}
	}
	for i, p := range params {
		copy(p.Tensor().Data(), ck.Tensors[i].Data)
	}
	return nil
}

func parameterName[B tensor.Backend](i int, p *nn.Parameter[B]) string {
	return fmt.Sprintf("%d.%s", i, p.Name())
}
