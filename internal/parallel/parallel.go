// Package parallel splits kernel loops across goroutines.
//
// Kernels write disjoint slices of a freshly allocated output, so chunks
// need no synchronization beyond the final wait.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Upper bound on goroutines per loop.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a configuration that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// Chunks returns how many goroutines a loop of n items would use.
func (c Config) Chunks(n int) int {
	if !c.Enabled || c.NumWorkers <= 1 || n < 2*max(c.MinChunkSize, 1) {
		return 1
	}
	return min(c.NumWorkers, n/max(c.MinChunkSize, 1))
}

// ForRange calls f on consecutive half-open ranges covering [0, n).
// Ranges are processed concurrently when the loop is large enough.
func ForRange(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	chunks := cfg.Chunks(n)
	if chunks == 1 {
		f(0, n)
		return
	}

	size := (n + chunks - 1) / chunks
	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n).
func For(n int, f func(i int), cfg Config) {
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForBatch iterates over every (batch, channel) pair, the outer loop of
// convolution, pooling and normalization kernels.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	if channels == 0 {
		return
	}
	For(batch*channels, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
