package data

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/dac/internal/tensor"
)

// LoaderConfig configures batched iteration over a Dataset.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	DropLast  bool // drop the trailing partial batch
}

// Batch is a contiguous block of samples. Images holds N*C*H*W values.
type Batch struct {
	Images  []float32
	Labels  []int32
	Indices []int // dataset indices of the samples, in batch order
	Size    int
	C, H, W int
}

// Loader iterates over a Dataset in batches. It is not safe for concurrent use.
type Loader struct {
	dataset  Dataset
	cfg      LoaderConfig
	rng      *rand.Rand
	indices  []int
	position int
}

// NewLoader creates a loader. rng drives shuffling and may be nil when
// cfg.Shuffle is false.
func NewLoader(ds Dataset, cfg LoaderConfig, rng *rand.Rand) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, cfg.BatchSize)
	}
	if cfg.Shuffle && rng == nil {
		return nil, fmt.Errorf("data: shuffling loader needs a random source")
	}

	indices := make([]int, ds.Len())
	for i := range indices {
		indices[i] = i
	}

	l := &Loader{dataset: ds, cfg: cfg, rng: rng, indices: indices}
	l.Reset()
	return l, nil
}

// Reset rewinds the loader and, when shuffling, draws a new order.
func (l *Loader) Reset() {
	l.position = 0
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.indices), func(i, j int) {
			l.indices[i], l.indices[j] = l.indices[j], l.indices[i]
		})
	}
}

// NumBatches returns the number of batches in one pass.
func (l *Loader) NumBatches() int {
	n := len(l.indices) / l.cfg.BatchSize
	if !l.cfg.DropLast && len(l.indices)%l.cfg.BatchSize != 0 {
		n++
	}
	return n
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() Dataset { return l.dataset }

// Next returns the next batch. ok is false once the pass is exhausted.
func (l *Loader) Next() (batch Batch, ok bool, err error) {
	remaining := len(l.indices) - l.position
	if remaining <= 0 || (l.cfg.DropLast && remaining < l.cfg.BatchSize) {
		return Batch{}, false, nil
	}

	size := min(remaining, l.cfg.BatchSize)
	c, h, w := l.dataset.Dims()
	pixels := c * h * w

	batch = Batch{
		Images:  make([]float32, size*pixels),
		Labels:  make([]int32, size),
		Indices: make([]int, size),
		Size:    size,
		C:       c,
		H:       h,
		W:       w,
	}
	for i := 0; i < size; i++ {
		idx := l.indices[l.position]
		sample, err := l.dataset.Get(idx)
		if err != nil {
			return Batch{}, false, fmt.Errorf("data: load sample %d: %w", idx, err)
		}
		copy(batch.Images[i*pixels:(i+1)*pixels], sample.Image)
		batch.Labels[i] = int32(sample.Label)
		batch.Indices[i] = idx
		l.position++
	}
	return batch, true, nil
}

// ImageTensor returns the batch images as a [N, C, H, W] float32 tensor.
func ImageTensor[B tensor.Backend](b Batch, backend B) *tensor.Tensor[float32, B] {
	t, err := tensor.FromSlice(b.Images, tensor.Shape{b.Size, b.C, b.H, b.W}, backend)
	if err != nil {
		panic(err)
	}
	return t
}

// LabelTensor returns the batch labels as a [N] int32 tensor.
func LabelTensor[B tensor.Backend](b Batch, backend B) *tensor.Tensor[int32, B] {
	t, err := tensor.FromSlice(b.Labels, tensor.Shape{b.Size}, backend)
	if err != nil {
		panic(err)
	}
	return t
}

// All loads every sample of ds, in index order, as a single batch.
func All(ds Dataset) (Batch, error) {
	l, err := NewLoader(ds, LoaderConfig{BatchSize: max(ds.Len(), 1)}, nil)
	if err != nil {
		return Batch{}, err
	}
	b, ok, err := l.Next()
	if err != nil {
		return Batch{}, err
	}
	if !ok {
		return Batch{}, ErrEmpty
	}
	return b, nil
}
