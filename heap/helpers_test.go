package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/tierheap/pkg/config"
)

// scenarioConfig is the small geometry used by most tests: class 2 holds
// sixteen 256-byte objects per block.
var scenarioConfig = config.Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}

func newTestRoot(t testing.TB, cfg config.Config, opts *Options) *Root {
	t.Helper()
	r, err := NewRoot(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Destroy() })
	return r
}

func newTestLocal(t testing.TB, r *Regional) *Local {
	t.Helper()
	h, err := r.NewLocal()
	require.NoError(t, err)
	return h
}

// forEachBlock visits every block of every chunk.
func forEachBlock(r *Root, fn func(*Block)) {
	r.chunkMu.Lock()
	defer r.chunkMu.Unlock()
	for c := r.chunks; c != nil; c = c.next {
		for i := range c.blocks {
			fn(&c.blocks[i])
		}
	}
}

func requireConserved(t testing.TB, r *Root) {
	t.Helper()
	forEachBlock(r, func(b *Block) {
		require.NoError(t, b.checkConservation())
	})
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}

func allocN(t testing.TB, h *Local, size, n int) []unsafe.Pointer {
	t.Helper()
	out := make([]unsafe.Pointer, n)
	for i := range out {
		p, err := h.Alloc(size)
		require.NoError(t, err)
		out[i] = p
	}
	return out
}

func blockOf(t testing.TB, r *Root, p unsafe.Pointer) *Block {
	t.Helper()
	b, err := r.lookup(p)
	require.NoError(t, err)
	return b
}
