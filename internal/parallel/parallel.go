// Package parallel fans CPU kernels out over goroutines.
//
// Kernels hand For an index space whose items write disjoint output regions,
// typically one sample or one (sample, channel) plane each.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config controls how work is split.
type Config struct {
	Enabled      bool
	NumWorkers   int
	MinChunkSize int // items claimed per grab; also the sequential cutoff
}

// DefaultConfig uses one worker per CPU and chunks of four image planes.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{Enabled: n > 1, NumWorkers: n, MinChunkSize: 4}
}

func (c Config) sequential(n int) bool {
	return !c.Enabled || c.NumWorkers < 2 || n <= max(c.MinChunkSize, 1)
}

// For calls f(i) once for every i in [0, n). Workers claim chunks of
// MinChunkSize indices from a shared counter until the range is exhausted, so
// uneven items balance out.
func For(n int, f func(i int), cfg Config) {
	if cfg.sequential(n) {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := int64(max(cfg.MinChunkSize, 1))
	workers := min(cfg.NumWorkers, (n+int(chunk)-1)/int(chunk))
	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				start := int(next.Add(chunk) - chunk)
				if start >= n {
					return
				}
				for i := start; i < min(start+int(chunk), n); i++ {
					f(i)
				}
			}
		}()
	}
	wg.Wait()
}

// ForBatch calls f for every (batch, channel) plane of an [N, C, H, W] tensor.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	if channels <= 0 {
		return
	}
	For(batch*channels, func(k int) { f(k/channels, k%channels) }, cfg)
}
