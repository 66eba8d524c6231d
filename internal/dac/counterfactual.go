package dac

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/internal/data"
	"github.com/born-ml/dac/internal/model"
	"github.com/born-ml/dac/internal/tensor"
)

// Counterfactual is one translated sample.
type Counterfactual struct {
	Index          int // index of the source sample in the dataset
	StyleIndex     int // index of the sample that provided the style
	Label          int
	Target         int
	Image          []float32
	Counterfactual []float32
	Reconstruction []float32 // G(counterfactual, image)
}

// Set holds the counterfactuals of a dataset in dataset order.
type Set struct {
	Items      []Counterfactual
	C, H, W    int
	NumClasses int
}

// Counterfactuals translates every sample of ds towards target(label). The style
// of each translation is a random sample of the target class. The generator runs
// with tape recording paused.
func Counterfactuals[B tensor.Backend](
	gen *model.Generator[B],
	ds data.Dataset,
	target func(label int) int,
	rng *rand.Rand,
	batchSize int,
	backend B,
) (*Set, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", data.ErrInvalidBatchSize, batchSize)
	}
	if ds.Len() == 0 {
		return nil, data.ErrEmpty
	}

	c, h, w := ds.Dims()
	pools := make(map[int][]int, ds.NumClasses())
	for class := 0; class < ds.NumClasses(); class++ {
		idx, err := data.IndicesOfClass(ds, class)
		if err != nil {
			return nil, err
		}
		pools[class] = idx
	}

	set := &Set{Items: make([]Counterfactual, 0, ds.Len()), C: c, H: h, W: w, NumClasses: ds.NumClasses()}
	for start := 0; start < ds.Len(); start += batchSize {
		end := min(start+batchSize, ds.Len())
		items := make([]Counterfactual, 0, end-start)
		images := make([][]float32, 0, end-start)
		styles := make([][]float32, 0, end-start)

		for i := start; i < end; i++ {
			s, err := ds.Get(i)
			if err != nil {
				return nil, err
			}
			t := target(s.Label)
			pool := pools[t]
			if len(pool) == 0 {
				return nil, fmt.Errorf("dac: sample %d: no style images of target class %d", i, t)
			}
			styleIdx := pool[rng.Intn(len(pool))]
			style, err := ds.Get(styleIdx)
			if err != nil {
				return nil, err
			}
			items = append(items, Counterfactual{Index: i, StyleIndex: styleIdx, Label: s.Label, Target: t, Image: s.Image})
			images = append(images, s.Image)
			styles = append(styles, style.Image)
		}

		x := stack(images, c, h, w, backend)
		var cf, rec *tensor.Tensor[float32, B]
		var err error
		autodiff.NoGrad(backend, func() {
			cf, err = gen.Generate(x, stack(styles, c, h, w, backend))
			if err != nil {
				return
			}
			rec, err = gen.Generate(cf, x)
		})
		if err != nil {
			return nil, fmt.Errorf("dac: samples [%d, %d): %w", start, end, err)
		}

		row := c * h * w
		cfData, recData := cf.Data(), rec.Data()
		for j := range items {
			items[j].Counterfactual = append([]float32(nil), cfData[j*row:(j+1)*row]...)
			items[j].Reconstruction = append([]float32(nil), recData[j*row:(j+1)*row]...)
		}
		set.Items = append(set.Items, items...)
	}
	return set, nil
}

// Len returns the number of counterfactuals.
func (s *Set) Len() int { return len(s.Items) }

// Labels returns the source labels.
func (s *Set) Labels() []int {
	out := make([]int, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Label
	}
	return out
}

// Targets returns the translation targets.
func (s *Set) Targets() []int {
	out := make([]int, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Target
	}
	return out
}

// Subset returns the items at indices, in that order.
func (s *Set) Subset(indices []int) (*Set, error) {
	out := &Set{Items: make([]Counterfactual, 0, len(indices)), C: s.C, H: s.H, W: s.W, NumClasses: s.NumClasses}
	for _, i := range indices {
		if i < 0 || i >= len(s.Items) {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", data.ErrIndexOutOfRange, i, len(s.Items))
		}
		out.Items = append(out.Items, s.Items[i])
	}
	return out, nil
}

// RealDataset returns the source images labelled with their class.
func (s *Set) RealDataset() (*data.Materialized, error) {
	return s.dataset(func(it Counterfactual) ([]float32, int) { return it.Image, it.Label })
}

// CounterfactualDataset returns the counterfactuals labelled with their target.
func (s *Set) CounterfactualDataset() (*data.Materialized, error) {
	return s.dataset(func(it Counterfactual) ([]float32, int) { return it.Counterfactual, it.Target })
}

// ReconstructionDataset returns the reconstructions labelled with the source class.
func (s *Set) ReconstructionDataset() (*data.Materialized, error) {
	return s.dataset(func(it Counterfactual) ([]float32, int) { return it.Reconstruction, it.Label })
}

func (s *Set) dataset(pick func(Counterfactual) ([]float32, int)) (*data.Materialized, error) {
	samples := make([]data.Sample, len(s.Items))
	for i, it := range s.Items {
		img, label := pick(it)
		samples[i] = data.Sample{Image: img, Label: label}
	}
	return data.NewMaterialized(samples, s.C, s.H, s.W, s.NumClasses)
}

func stack[B tensor.Backend](images [][]float32, c, h, w int, backend B) *tensor.Tensor[float32, B] {
	row := c * h * w
	buf := make([]float32, len(images)*row)
	for i, img := range images {
		copy(buf[i*row:], img)
	}
	out, err := tensor.FromSlice(buf, tensor.Shape{len(images), c, h, w}, backend)
	if err != nil {
		panic(err)
	}
	return out
}
