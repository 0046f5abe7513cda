package heap

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/tierheap/heap/tid"
)

// Linkage chains the blocks of one size class within a heap.
//
// For a Regional heap head is the first block of the chain. For a Local heap
// head is the allocation target; blocks left of it are retired and blocks
// right of it are half-empty blocks queued for reuse.
type Linkage struct {
	chain sync.Mutex
	head  atomic.Pointer[Block]

	class int
	local bool
	up    *Regional // Evacuation target
	root  *Root
}

func newLinkage(class int, local bool, up *Regional, root *Root) *Linkage {
	return &Linkage{class: class, local: local, up: up, root: root}
}

// unlink removes b from the chain. Caller holds chain and b.guard.
func (l *Linkage) unlink(b *Block) {
	if b.prev != nil {
		b.prev.next = b.next
	}
	if b.next != nil {
		b.next.prev = b.prev
	}
	if l.head.Load() == b {
		l.head.Store(b.next)
	}
	b.prev, b.next = nil, nil
}

// pushFront makes b the first block. Caller holds chain.
func (l *Linkage) pushFront(b *Block) {
	head := l.head.Load()
	b.prev, b.next = nil, head
	if head != nil {
		head.prev = b
	}
	l.head.Store(b)
}

// insertAfter links b immediately right of at. Caller holds chain.
func (l *Linkage) insertAfter(at, b *Block) {
	b.prev, b.next = at, at.next
	if at.next != nil {
		at.next.prev = b
	}
	at.next = b
}

// requeue moves a half-empty block right of the head. Caller holds chain.
func (l *Linkage) requeue(b *Block) {
	head := l.head.Load()
	if head == nil || head == b || head.next == b {
		return
	}
	b.guard.Lock()
	l.unlink(b)
	l.insertAfter(head, b)
	b.guard.Unlock()
}

// evacuate hands an unlinked block to the parent heap. Caller holds
// b.guard; the receiving linkage releases it.
func (l *Linkage) evacuate(b *Block) {
	l.root.stats.blocksEvacuated.Add(1)
	if l.up == nil {
		b.lkg.Store(nil)
		b.guard.Unlock()
		l.root.fail(ErrHierarchy, "evacuate block %d/%d from orphaned heap", b.chunk.id, b.index)
		return
	}
	l.up.takeEvacuated(b)
}

// receive links b at the front. Caller holds b.guard, which is released here
// once b is reachable from this chain only.
func (l *Linkage) receive(b *Block) {
	l.chain.Lock()
	l.pushFront(b)
	b.lkg.Store(l)
	b.owner.Store(uint64(tid.None))
	b.clearHead()
	b.guard.Unlock()
	l.chain.Unlock()
}

// request pops the first block accepted by keep, or any block when keep is
// nil. The block is returned unlinked with guard held.
func (l *Linkage) request(keep func(*Block) bool) *Block {
	l.chain.Lock()
	defer l.chain.Unlock()
	for b := l.head.Load(); b != nil; b = b.next {
		if keep != nil && !keep(b) {
			continue
		}
		b.guard.Lock()
		l.unlink(b)
		b.lkg.Store(nil)
		return b
	}
	return nil
}

// drain evacuates every block of a shared linkage to l.up.
func (l *Linkage) drain() int {
	l.chain.Lock()
	defer l.chain.Unlock()
	n := 0
	for b := l.head.Load(); b != nil; {
		next := b.next
		b.guard.Lock()
		l.unlink(b)
		l.evacuate(b)
		b = next
		n++
	}
	return n
}

// blocks snapshots the chain from its leftmost block.
func (l *Linkage) blocks() []*Block {
	l.chain.Lock()
	defer l.chain.Unlock()
	start := l.head.Load()
	if start == nil {
		return nil
	}
	for start.prev != nil {
		start = start.prev
	}
	var out []*Block
	for b := start; b != nil; b = b.next {
		out = append(out, b)
	}
	return out
}

// len counts the blocks on the chain.
func (l *Linkage) len() int { return len(l.blocks()) }
