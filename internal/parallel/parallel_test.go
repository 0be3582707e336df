package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestForBatch(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 2}

	batch, channels := 4, 8
	var hits [4][8]int32

	ForBatch(batch, channels, func(b, c int) {
		atomic.AddInt32(&hits[b][c], 1)
	}, cfg)

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.Equal(t, int32(1), hits[b][c], "pair [%d][%d]", b, c)
		}
	}
}

func TestForRange_CoversEachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 5}
	n := 103
	seen := make([]int32, n)

	var calls int32
	ForRange(n, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Less(t, start, end)
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, cfg)

	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
	assert.LessOrEqual(t, calls, int32(3))
}

func TestForRange_Empty(t *testing.T) {
	called := false
	ForRange(0, func(_, _ int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		n    int
		want int
	}{
		{"disabled", Config{Enabled: false, NumWorkers: 8, MinChunkSize: 1}, 1000, 1},
		{"sequential", Sequential(), 1000, 1},
		{"small loop", Config{Enabled: true, NumWorkers: 8, MinChunkSize: 64}, 100, 1},
		{"worker bound", Config{Enabled: true, NumWorkers: 4, MinChunkSize: 10}, 1000, 4},
		{"chunk bound", Config{Enabled: true, NumWorkers: 16, MinChunkSize: 100}, 450, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Chunks(tt.n))
		})
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(10, func(i int) {
		order = append(order, i)
	}, Sequential())

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	data := make([]float64, 1<<16)
	for i := 0; i < b.N; i++ {
		For(len(data), func(j int) {
			data[j] = float64(j) * 0.5
		}, cfg)
	}
}
