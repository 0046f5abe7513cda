package heap

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/tierheap/internal/format"
	"github.com/joshuapare/tierheap/internal/vmem"
	"github.com/joshuapare/tierheap/pkg/config"
)

// Root is the top of a heap hierarchy. It mints chunks on demand and owns
// them until Destroy. Reaching zero children does not destroy it.
type Root struct {
	Regional

	cfg     config.Config
	opts    Options
	classes *sizeClassTable

	chunkMu sync.Mutex // Serializes minting and Destroy
	chunks  *Chunk
	nextID  uint32
	index   atomic.Pointer[map[uintptr]*Chunk] // Copy on write, keyed by chunk base

	stats counters
}

// NewRoot validates cfg and creates an empty Root heap. No memory is mapped
// until the first allocation.
func NewRoot(cfg config.Config, opts *Options) (*Root, error) {
	r := &Root{
		cfg:  cfg,
		opts: opts.withDefaults(),
	}
	if err := cfg.Validate(vmem.PageSize()); err != nil {
		return nil, r.fail(fmt.Errorf("%w: %w", ErrBadConfig, err), "new root")
	}
	r.classes = newSizeClassTable(cfg.PoolSize, cfg.PoolCount)
	r.Regional.init(nil, &r.Regional, r, false)
	empty := map[uintptr]*Chunk{}
	r.index.Store(&empty)
	return r, nil
}

// NewRootFrom reads the configuration from src.
func NewRootFrom(src config.Source, opts *Options) (*Root, error) {
	cfg, err := config.FromSource(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	return NewRoot(cfg, opts)
}

// Config returns the configuration the Root was built with.
func (r *Root) Config() config.Config { return r.cfg }

// MaxObjectSize returns the largest size Alloc accepts.
func (r *Root) MaxObjectSize() int { return r.classes.maxSize() }

// grow mints a chunk, keeps its first block for the caller (guard held) and
// releases the rest to the unformatted pool.
func (r *Root) grow() (*Block, error) {
	r.chunkMu.Lock()
	if r.refs.Load() < 0 {
		r.chunkMu.Unlock()
		return nil, r.fail(ErrClosed, "grow destroyed root")
	}
	r.nextID++
	c, err := newChunk(r, r.nextID)
	if err != nil {
		r.chunkMu.Unlock()
		return nil, r.fail(err, "mint chunk %d", r.nextID)
	}
	c.next = r.chunks
	r.chunks = c

	next := maps.Clone(*r.index.Load())
	next[c.base()] = c
	r.index.Store(&next)
	r.chunkMu.Unlock()

	r.stats.chunksMinted.Add(1)
	r.log().Debug("chunk minted", "chunk", c.id, "base", fmt.Sprintf("%#x", c.base()), "size", r.cfg.ChunkSize)

	b := &c.blocks[0]
	b.guard.Lock()
	c.releaseBlocks(r.lkgs[0], 1, format.BlocksPerChunk)
	return b, nil
}

// chunkOf finds the chunk containing p.
func (r *Root) chunkOf(p unsafe.Pointer) *Chunk {
	base := uintptr(p) &^ uintptr(r.cfg.ChunkSize-1)
	return (*r.index.Load())[base]
}

// Owns reports whether p lies inside a chunk of this hierarchy.
func (r *Root) Owns(p unsafe.Pointer) bool {
	return r.chunkOf(p) != nil
}

// Chunks returns the number of chunks minted and not yet destroyed.
func (r *Root) Chunks() int {
	return len(*r.index.Load())
}

// Inspect decodes the header area of every chunk, newest first.
func (r *Root) Inspect() ([]ChunkInfo, error) {
	r.chunkMu.Lock()
	defer r.chunkMu.Unlock()
	var out []ChunkInfo
	for c := r.chunks; c != nil; c = c.next {
		info, err := c.inspect()
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Trim returns the pages behind the Root's unformatted blocks to the OS and
// reports how many bytes were released. Blocks stay in the pool and are
// rebuilt by the next format, so Trim only lowers resident memory.
func (r *Root) Trim() (int, error) {
	r.chunkMu.Lock()
	defer r.chunkMu.Unlock()
	if r.refs.Load() < 0 {
		return 0, ErrClosed
	}

	l := r.lkgs[0]
	l.chain.Lock()
	defer l.chain.Unlock()
	total, blocks := 0, 0
	for b := l.head.Load(); b != nil; b = b.next {
		b.guard.Lock()
		n, err := b.chunk.region.Release((b.index+1)*b.chunk.poolSize, b.chunk.poolSize)
		b.guard.Unlock()
		if err != nil {
			return total, r.fail(err, "trim block %d/%d", b.chunk.id, b.index)
		}
		total += n
		blocks++
	}
	r.stats.bytesTrimmed.Add(int64(total))
	r.log().Debug("root trimmed", "blocks", blocks, "bytes", total)
	return total, nil
}

// Destroy unmaps every chunk. All objects become invalid. It fails with
// ErrInUse while children are attached.
func (r *Root) Destroy() error {
	if !r.refs.CompareAndSwap(0, refsDropped) {
		if r.refs.Load() < 0 {
			return ErrClosed
		}
		return r.fail(ErrInUse, "destroy root with %d children", r.Refs())
	}

	r.chunkMu.Lock()
	defer r.chunkMu.Unlock()
	for _, l := range r.lkgs {
		l.chain.Lock()
		l.head.Store(nil)
		l.chain.Unlock()
	}
	n := r.Chunks()
	err := destroyChunks(r.chunks)
	r.chunks = nil
	empty := map[uintptr]*Chunk{}
	r.index.Store(&empty)
	r.stats.chunksDestroyed.Add(int64(n))
	r.log().Debug("root destroyed", "chunks", n)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrImpossible, err), "unmap chunks")
	}
	return nil
}
