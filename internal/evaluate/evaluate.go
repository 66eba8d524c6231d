// Package evaluate measures a classifier on a dataset.
package evaluate

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/nn"
	"github.com/born-ml/dac/internal/tensor"
)

// Predict runs m over every batch of loader and returns the predicted classes
// with the matching labels.
func Predict[B tensor.Backend](m nn.Module[B], loader *data.Loader, backend B) (preds, labels []int, err error) {
	loader.Reset()
	for {
		batch, ok, err := loader.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		preds = append(preds, model.Classify(m, data.ImageTensor(batch, backend))...)
		for _, l := range batch.Labels {
			labels = append(labels, int(l))
		}
	}
	return preds, labels, nil
}

// ConfusionMatrix returns the k x k matrix whose (i, j) entry counts samples
// of label i predicted as j.
func ConfusionMatrix(labels, preds []int, k int) (*mat.Dense, error) {
	if len(labels) != len(preds) {
		return nil, fmt.Errorf("evaluate: %d labels, %d predictions", len(labels), len(preds))
	}
	if k <= 0 {
		return nil, fmt.Errorf("evaluate: invalid class count %d", k)
	}
	cm := mat.NewDense(k, k, nil)
	for i := range labels {
		l, p := labels[i], preds[i]
		if l < 0 || l >= k || p < 0 || p >= k {
			return nil, fmt.Errorf("evaluate: sample %d (label %d, prediction %d) outside [0, %d)", i, l, p, k)
		}
		cm.Set(l, p, cm.At(l, p)+1)
	}
	return cm, nil
}

// Accuracy returns the trace of cm over its total.
func Accuracy(cm *mat.Dense) float64 {
	total := mat.Sum(cm)
	if total == 0 {
		return 0
	}
	return mat.Trace(cm) / total
}

// Normalize returns cm with every row divided by its sum. Empty rows stay zero.
func Normalize(cm *mat.Dense) *mat.Dense {
	r, c := cm.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, cm)
		sum := floats.Sum(row)
		if sum == 0 {
			continue
		}
		for j, v := range row {
			out.Set(i, j, v/sum)
		}
	}
	return out
}

// Format renders cm as a text table with one row per label.
func Format(cm *mat.Dense, names []string) string {
	r, c := cm.Dims()
	var b strings.Builder
	for i := 0; i < r; i++ {
		name := fmt.Sprint(i)
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(&b, "%-8s", name)
		for j := 0; j < c; j++ {
			fmt.Fprintf(&b, " %6.0f", cm.At(i, j))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
