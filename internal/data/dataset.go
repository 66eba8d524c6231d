// Package data provides the image datasets consumed by the classifier, the
// CycleGAN trainer and the attribution pipeline.
//
// Images are stored channel-first (C, H, W) as float32 values in [0, 1]. A
// Dataset never hands out its own storage: every Get returns a fresh copy, so a
// sample cannot be mutated once produced.
package data

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a sample index is outside [0, Len()).
	ErrIndexOutOfRange = errors.New("data: index out of range")

	// ErrInvalidBatchSize is returned by NewLoader for non-positive batch sizes.
	ErrInvalidBatchSize = errors.New("data: invalid batch size")

	// ErrEmpty is returned when a dataset or subset would contain no samples.
	ErrEmpty = errors.New("data: empty dataset")
)

// Sample is one (image, label) pair. Image has C*H*W elements in CHW order.
type Sample struct {
	Image []float32
	Label int
}

// Dataset is indexable access to samples of a fixed shape.
type Dataset interface {
	Len() int
	Get(i int) (Sample, error)
	Dims() (c, h, w int)
	NumClasses() int
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, n)
	}
	return nil
}

func cloneSample(s Sample) Sample {
	return Sample{Image: append([]float32(nil), s.Image...), Label: s.Label}
}

// Materialized is a Dataset backed by in-memory samples, e.g. generated
// counterfactuals.
type Materialized struct {
	samples    []Sample
	c, h, w    int
	numClasses int
}

// NewMaterialized copies samples into a new dataset. Every image must have c*h*w
// elements and every label must lie in [0, numClasses).
func NewMaterialized(samples []Sample, c, h, w, numClasses int) (*Materialized, error) {
	size := c * h * w
	out := make([]Sample, len(samples))
	for i, s := range samples {
		if len(s.Image) != size {
			return nil, fmt.Errorf("data: sample %d has %d values, want %d", i, len(s.Image), size)
		}
		if s.Label < 0 || s.Label >= numClasses {
			return nil, fmt.Errorf("data: sample %d label %d not in [0, %d)", i, s.Label, numClasses)
		}
		out[i] = cloneSample(s)
	}
	return &Materialized{samples: out, c: c, h: h, w: w, numClasses: numClasses}, nil
}

// Len returns the number of samples.
func (m *Materialized) Len() int { return len(m.samples) }

// Get returns a copy of sample i.
func (m *Materialized) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(m.samples)); err != nil {
		return Sample{}, err
	}
	return cloneSample(m.samples[i]), nil
}

// Dims returns the image shape.
func (m *Materialized) Dims() (c, h, w int) { return m.c, m.h, m.w }

// NumClasses returns the number of label values.
func (m *Materialized) NumClasses() int { return m.numClasses }

// Subset is a view of a parent dataset restricted to a list of indices.
type Subset struct {
	parent  Dataset
	indices []int
}

// NewSubset returns the samples of ds at indices, in that order.
func NewSubset(ds Dataset, indices []int) (*Subset, error) {
	for _, i := range indices {
		if err := checkIndex(i, ds.Len()); err != nil {
			return nil, err
		}
	}
	return &Subset{parent: ds, indices: append([]int(nil), indices...)}, nil
}

// Len returns the number of selected samples.
func (s *Subset) Len() int { return len(s.indices) }

// Get returns selected sample i.
func (s *Subset) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(s.indices)); err != nil {
		return Sample{}, err
	}
	return s.parent.Get(s.indices[i])
}

// Dims returns the parent image shape.
func (s *Subset) Dims() (c, h, w int) { return s.parent.Dims() }

// NumClasses returns the parent number of classes.
func (s *Subset) NumClasses() int { return s.parent.NumClasses() }

// Indices returns the parent indices of this subset.
func (s *Subset) Indices() []int { return append([]int(nil), s.indices...) }

// ClassSubset keeps the samples whose label is in classes and relabels them by
// their position in classes. ClassSubset(ds, []int{2, 0}) maps label 2 to 0 and
// label 0 to 1; this is how the two-class translation datasets are built.
type ClassSubset struct {
	parent  Dataset
	indices []int
	relabel map[int]int
	classes int
}

// NewClassSubset builds a ClassSubset. It fails with ErrEmpty if no sample matches.
func NewClassSubset(ds Dataset, classes []int) (*ClassSubset, error) {
	relabel := make(map[int]int, len(classes))
	for i, c := range classes {
		if c < 0 || c >= ds.NumClasses() {
			return nil, fmt.Errorf("data: class %d not in [0, %d)", c, ds.NumClasses())
		}
		if _, dup := relabel[c]; dup {
			return nil, fmt.Errorf("data: class %d listed twice", c)
		}
		relabel[c] = i
	}

	var indices []int
	for i := 0; i < ds.Len(); i++ {
		s, err := ds.Get(i)
		if err != nil {
			return nil, err
		}
		if _, ok := relabel[s.Label]; ok {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: no samples of classes %v", ErrEmpty, classes)
	}

	return &ClassSubset{parent: ds, indices: indices, relabel: relabel, classes: len(classes)}, nil
}

// Len returns the number of matching samples.
func (s *ClassSubset) Len() int { return len(s.indices) }

// Get returns matching sample i with its new label.
func (s *ClassSubset) Get(i int) (Sample, error) {
	if err := checkIndex(i, len(s.indices)); err != nil {
		return Sample{}, err
	}
	sample, err := s.parent.Get(s.indices[i])
	if err != nil {
		return Sample{}, err
	}
	sample.Label = s.relabel[sample.Label]
	return sample, nil
}

// Dims returns the parent image shape.
func (s *ClassSubset) Dims() (c, h, w int) { return s.parent.Dims() }

// NumClasses returns the number of kept classes.
func (s *ClassSubset) NumClasses() int { return s.classes }

// Labels returns every label of ds in index order.
func Labels(ds Dataset) ([]int, error) {
	labels := make([]int, ds.Len())
	for i := range labels {
		s, err := ds.Get(i)
		if err != nil {
			return nil, err
		}
		labels[i] = s.Label
	}
	return labels, nil
}

// IndicesOfClass returns the indices of all samples of ds labelled class.
func IndicesOfClass(ds Dataset, class int) ([]int, error) {
	var out []int
	for i := 0; i < ds.Len(); i++ {
		s, err := ds.Get(i)
		if err != nil {
			return nil, err
		}
		if s.Label == class {
			out = append(out, i)
		}
	}
	return out, nil
}
