package heap

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/joshuapare/tierheap/internal/format"
	"github.com/joshuapare/tierheap/internal/vmem"
)

// Chunk is a self-aligned region carved into a header pool and
// format.BlocksPerChunk block pools.
type Chunk struct {
	region   *vmem.Region
	id       uint32
	poolSize int
	root     *Root

	blocks [format.BlocksPerChunk]Block
	next   *Chunk // Root's chunk list
}

// newChunk maps and initializes a chunk. All blocks start unformatted and in
// no linkage.
func newChunk(root *Root, id uint32) (*Chunk, error) {
	region, err := vmem.MapAligned(root.cfg.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	c := &Chunk{
		region:   region,
		id:       id,
		poolSize: root.cfg.PoolSize,
		root:     root,
	}
	hdr := format.ChunkHeader{ID: id, PoolSize: uint32(c.poolSize), BlockCount: format.BlocksPerChunk}
	if err := format.PutChunkHeader(c.header(), hdr); err != nil {
		region.Unmap()
		return nil, fmt.Errorf("%w: %w", ErrImpossible, err)
	}
	for i := range c.blocks {
		b := &c.blocks[i]
		b.base = unsafe.Add(region.Pointer(), (i+1)*c.poolSize)
		b.localFree = format.LinkEnd
		b.foreignFree.Store(format.LinkEnd)
		b.chunk = c
		b.index = i
	}
	return c, nil
}

// base returns the chunk's aligned start address.
func (c *Chunk) base() uintptr { return uintptr(c.region.Pointer()) }

// header returns the header pool.
func (c *Chunk) header() []byte { return c.region.Bytes()[:c.poolSize] }

// recordFormat updates block i's header record. Caller holds the block guard.
func (c *Chunk) recordFormat(i, osz, count int) {
	area := c.header()
	rec, err := format.ReadBlockRecord(area, i)
	if err != nil {
		return
	}
	rec.ObjSize = uint16(osz)
	rec.ObjCount = uint16(count)
	rec.Formats++
	format.PutBlockRecord(area, i, rec)
}

// blockAt maps an interior address to its block.
func (c *Chunk) blockAt(p unsafe.Pointer) (*Block, error) {
	off := uintptr(p) - c.base()
	pool := int(off / uintptr(c.poolSize))
	if pool == 0 || pool > format.BlocksPerChunk {
		return nil, ErrBadPointer
	}
	return &c.blocks[pool-1], nil
}

// releaseBlocks hands blocks [from, to) to l. Every block must be unlinked
// and empty.
func (c *Chunk) releaseBlocks(l *Linkage, from, to int) {
	for i := from; i < to; i++ {
		b := &c.blocks[i]
		b.guard.Lock()
		l.receive(b)
	}
}

// destroy unmaps the chunk. Every block becomes invalid.
func (c *Chunk) destroy() error {
	return c.region.Unmap()
}

// destroyChunks unmaps c and every chunk chained after it.
func destroyChunks(c *Chunk) error {
	var errs []error
	for c != nil {
		next := c.next
		if err := c.destroy(); err != nil {
			errs = append(errs, fmt.Errorf("chunk %d: %w", c.id, err))
		}
		c.next = nil
		c = next
	}
	return errors.Join(errs...)
}

// ChunkInfo summarizes a chunk's header area.
type ChunkInfo struct {
	ID        uint32
	Base      uintptr
	PoolSize  int
	Formatted int                  // Blocks formatted at least once
	Records   []format.BlockRecord // One per block
}

// inspect decodes the header area. It may observe a record mid-update while
// the heap is in use.
func (c *Chunk) inspect() (ChunkInfo, error) {
	area := c.header()
	hdr, err := format.ReadChunkHeader(area)
	if err != nil {
		return ChunkInfo{}, fmt.Errorf("chunk %d: %w", c.id, err)
	}
	info := ChunkInfo{
		ID:       hdr.ID,
		Base:     c.base(),
		PoolSize: int(hdr.PoolSize),
		Records:  make([]format.BlockRecord, hdr.BlockCount),
	}
	for i := range info.Records {
		rec, err := format.ReadBlockRecord(area, i)
		if err != nil {
			return ChunkInfo{}, fmt.Errorf("chunk %d: %w", c.id, err)
		}
		info.Records[i] = rec
		if rec.Formats > 0 {
			info.Formatted++
		}
	}
	return info, nil
}
