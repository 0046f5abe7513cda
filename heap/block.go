package heap

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/tierheap/heap/tid"
	"github.com/joshuapare/tierheap/internal/format"
)

const flagHead uint32 = 1 << 0

// Block is a pool of same-sized objects inside a chunk.
//
// Free objects are threaded into two lists through their first two bytes:
// localFree belongs to the owner and is touched without locking,
// foreignFree collects frees from everyone else under guard. live counts
// objects that are in neither list.
type Block struct {
	guard sync.Mutex

	base unsafe.Pointer // Start of the block's pool
	osz  uint32         // Object size, 0 while unformatted
	ocnt uint32         // Objects per pool

	localFree   uint32 // Owner only
	foreignFree atomic.Uint32
	live        atomic.Int32
	flags       atomic.Uint32
	owner       atomic.Uint64

	// Chain links, guarded by the chain lock of lkg.
	prev, next *Block
	lkg        atomic.Pointer[Linkage]

	chunk *Chunk
	index int
}

func (b *Block) isHead() bool { return b.flags.Load()&flagHead != 0 }

func (b *Block) setHead() { b.flags.Or(flagHead) }

func (b *Block) clearHead() { b.flags.And(^flagHead) }

func (b *Block) ownerID() tid.ID { return tid.ID(b.owner.Load()) }

func (b *Block) root() *Root { return b.chunk.root }

// format dedicates an empty block to objects of osz bytes. The caller holds
// guard and the block is in no linkage.
func (b *Block) format(osz int) error {
	if n := b.live.Load(); n != 0 {
		return b.root().fail(ErrImpossible, "format block %d/%d with %d live objects", b.chunk.id, b.index, n)
	}
	pool := b.chunk.poolSize
	count := pool / osz
	if count < 1 || count*osz > format.MaxPoolSize {
		return b.root().fail(ErrImpossible, "format block with object size %d", osz)
	}
	if debugChecks {
		clear(unsafe.Slice((*byte)(b.base), pool))
	}

	b.osz = uint32(osz)
	b.ocnt = uint32(count)
	b.localFree = format.BuildFreeList(b.base, osz, count)
	b.foreignFree.Store(format.LinkEnd)
	b.chunk.recordFormat(b.index, osz, count)
	b.root().stats.blocksFormatted.Add(1)
	return nil
}

// alloc pops an object, adopting the foreign list when the local one is
// empty. Only the owner calls alloc.
func (b *Block) alloc() (unsafe.Pointer, bool) {
	off := b.localFree
	if off == format.LinkEnd {
		if b.foreignFree.Load() == format.LinkEnd {
			return nil, false
		}
		b.guard.Lock()
		off = b.foreignFree.Swap(format.LinkEnd)
		b.guard.Unlock()
		if off == format.LinkEnd {
			return nil, false
		}
	}
	b.localFree = uint32(format.ReadLink(b.base, off))
	b.live.Add(1)
	return unsafe.Add(b.base, off), true
}

// offsetOf validates p against the block's geometry.
func (b *Block) offsetOf(p unsafe.Pointer) (uint32, error) {
	osz := uintptr(b.osz)
	if osz == 0 {
		return 0, ErrBadPointer
	}
	off := uintptr(p) - uintptr(b.base)
	if uintptr(p) < uintptr(b.base) || off >= osz*uintptr(b.ocnt) || off%osz != 0 {
		return 0, ErrBadPointer
	}
	return uint32(off), nil
}

// dealloc returns p to the block. self is the freeing heap's owner ID;
// tid.None always takes the foreign path.
func (b *Block) dealloc(p unsafe.Pointer, self tid.ID) error {
	off, err := b.offsetOf(p)
	if err != nil {
		return b.root().fail(err, "free %p in block %d/%d", p, b.chunk.id, b.index)
	}

	// The object is still live, so the geometry cannot change before the
	// decrement below.
	half := b.ocnt / 2

	if self != tid.None && b.ownerID() == self {
		if off == b.localFree || (debugChecks && b.listed(b.localFree, off)) {
			return b.root().fail(ErrBadPointer, "double free of %p", p)
		}
		format.WriteLink(b.base, off, uint16(b.localFree))
		b.localFree = off
	} else {
		b.guard.Lock()
		head := b.foreignFree.Load()
		if off == head || (debugChecks && b.listed(head, off)) {
			b.guard.Unlock()
			return b.root().fail(ErrBadPointer, "double free of %p", p)
		}
		format.WriteLink(b.base, off, uint16(head))
		b.foreignFree.Store(off)
		b.guard.Unlock()
		b.root().stats.foreignFrees.Add(1)
	}

	n := b.live.Add(-1)
	switch {
	case n < 0:
		return b.root().fail(ErrImpossible, "block %d/%d live count underflow", b.chunk.id, b.index)
	case n == 0:
		if !b.isHead() {
			return b.emptied()
		}
	case uint32(n) == half:
		if !b.isHead() {
			b.halfEmpty()
		}
	}
	return nil
}

// listed reports whether off is on the list starting at head.
func (b *Block) listed(head, off uint32) bool {
	n := 0
	for cur := head; cur != format.LinkEnd; cur = uint32(format.ReadLink(b.base, cur)) {
		if cur == off {
			return true
		}
		if n++; n > int(b.ocnt) {
			return false
		}
	}
	return false
}

// emptied evacuates a block whose last object was just freed. The block may
// be moving between linkages concurrently; the chain lock of wherever it
// currently lives is taken before re-checking.
func (b *Block) emptied() error {
	for {
		l := b.lkg.Load()
		if l == nil {
			// In transit: whoever holds guard is about to link it.
			b.guard.Lock()
			l = b.lkg.Load()
			b.guard.Unlock()
			if l == nil {
				return nil
			}
		}

		// Membership is stable under the chain lock. Checking it before
		// taking guard keeps guard holders that wait on this chain out.
		l.chain.Lock()
		if b.lkg.Load() != l {
			l.chain.Unlock()
			continue
		}
		b.guard.Lock()
		if l.class == 0 || b.isHead() || b.live.Load() != 0 {
			b.guard.Unlock()
			l.chain.Unlock()
			return nil
		}
		l.unlink(b)
		l.evacuate(b)
		l.chain.Unlock()
		return nil
	}
}

// halfEmpty fires the empty-enough notification for a non-head block.
func (b *Block) halfEmpty() {
	l := b.lkg.Load()
	if l == nil {
		return
	}
	r := b.root()

	l.chain.Lock()
	if b.lkg.Load() != l || b.isHead() || b.live.Load() == 0 || l.class == 0 {
		l.chain.Unlock()
		return
	}
	info := b.info(l.class)
	if r.opts.RequeueHalfEmpty && l.local {
		l.requeue(b)
	}
	l.chain.Unlock()

	r.stats.emptyEnough.Add(1)
	if r.opts.OnEmptyEnough != nil {
		r.opts.OnEmptyEnough(info)
	}
}

func (b *Block) info(class int) BlockInfo {
	return BlockInfo{
		Chunk:       b.chunk.id,
		Index:       b.index,
		Class:       class,
		ObjectSize:  int(b.osz),
		ObjectCount: int(b.ocnt),
		Live:        int(b.live.Load()),
		Owner:       b.ownerID(),
	}
}

// freeCount walks both free lists. Callers must hold guard and be the owner
// or have the block quiescent.
func (b *Block) freeCount() (int, error) {
	local, ok := format.WalkFreeList(b.base, b.localFree, int(b.ocnt))
	if !ok {
		return 0, fmt.Errorf("%w: local free list of block %d/%d loops", ErrImpossible, b.chunk.id, b.index)
	}
	foreign, ok := format.WalkFreeList(b.base, b.foreignFree.Load(), int(b.ocnt))
	if !ok {
		return 0, fmt.Errorf("%w: foreign free list of block %d/%d loops", ErrImpossible, b.chunk.id, b.index)
	}
	return local + foreign, nil
}

// checkConservation verifies live + free == ocnt for a quiescent block.
func (b *Block) checkConservation() error {
	b.guard.Lock()
	defer b.guard.Unlock()
	if b.osz == 0 {
		return nil
	}
	free, err := b.freeCount()
	if err != nil {
		return err
	}
	if live := int(b.live.Load()); live+free != int(b.ocnt) {
		return fmt.Errorf("%w: block %d/%d live %d + free %d != %d",
			ErrImpossible, b.chunk.id, b.index, live, free, b.ocnt)
	}
	return nil
}
