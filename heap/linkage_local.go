package heap

import (
	"unsafe"
)

// allocLocal serves one object from a Local heap's linkage: the head block
// first, then a slide right onto a queued neighbour, then a slide left onto
// a block pulled from the hierarchy.
func (l *Linkage) allocLocal(h *Local) (unsafe.Pointer, error) {
	head := l.head.Load()
	if head == nil {
		return l.pull(h)
	}
	if p, ok := head.alloc(); ok {
		return p, nil
	}

	next, err := l.slideRight(head)
	if err != nil {
		return nil, err
	}
	if next != nil {
		if p, ok := next.alloc(); ok {
			return p, nil
		}
		return nil, l.root.fail(ErrImpossible, "alloc after slide right on block %d/%d", next.chunk.id, next.index)
	}
	return l.slideLeft(h, head)
}

// adopt makes a requested block the owner's allocation target. Caller holds
// b.guard, which is released.
func (l *Linkage) adopt(h *Local, b *Block) {
	b.owner.Store(uint64(h.owner))
	b.lkg.Store(l)
	b.setHead()
	b.guard.Unlock()
}

// pull installs the first block of an empty linkage.
func (l *Linkage) pull(h *Local) (unsafe.Pointer, error) {
	b, err := h.requestBlock(l.class)
	if err != nil {
		return nil, err
	}
	l.adopt(h, b)

	l.chain.Lock()
	l.pushFront(b)
	l.chain.Unlock()

	if p, ok := b.alloc(); ok {
		return p, nil
	}
	return nil, l.root.fail(ErrImpossible, "alloc from pulled block %d/%d", b.chunk.id, b.index)
}

// slideRight moves the head onto its right neighbour. It returns nil when
// there is no neighbour.
func (l *Linkage) slideRight(head *Block) (*Block, error) {
	l.chain.Lock()
	next := head.next
	if next == nil {
		l.chain.Unlock()
		return nil, nil
	}

	head.guard.Lock()
	next.guard.Lock()
	head.clearHead()
	next.setHead()
	if !l.head.CompareAndSwap(head, next) {
		next.clearHead()
		head.setHead()
		next.guard.Unlock()
		head.guard.Unlock()
		l.chain.Unlock()
		return nil, l.root.fail(ErrDesync, "slide right: head moved under owner")
	}
	next.guard.Unlock()
	l.retire(head)
	l.chain.Unlock()

	l.root.stats.slidesRight.Add(1)
	if debugChecks {
		if err := next.checkConservation(); err != nil {
			return nil, l.root.fail(err, "slide right")
		}
	}
	return next, nil
}

// slideLeft replaces an exhausted head with a block pulled from the
// hierarchy. The old head stays in the chain left of the new one.
func (l *Linkage) slideLeft(h *Local, head *Block) (unsafe.Pointer, error) {
	b, err := h.requestBlock(l.class)
	if err != nil {
		return nil, err
	}

	// b is in no chain yet, so holding its guard across the chain lock
	// cannot invert the order. The old head gives up its flag first.
	l.chain.Lock()
	head.guard.Lock()
	head.clearHead()
	l.adopt(h, b)
	l.insertAfter(head, b)
	l.head.Store(b)
	l.retire(head)
	l.chain.Unlock()

	l.root.stats.slidesLeft.Add(1)
	if p, ok := b.alloc(); ok {
		return p, nil
	}
	return nil, l.root.fail(ErrImpossible, "alloc after slide left on block %d/%d", b.chunk.id, b.index)
}

// retire finishes demoting a former head. Caller holds chain and b.guard
// with the head flag already cleared. A block that emptied while it was the
// head is evacuated now since no free will do it later.
func (l *Linkage) retire(b *Block) {
	if b.live.Load() == 0 {
		l.unlink(b)
		l.evacuate(b)
		return
	}
	b.guard.Unlock()
}

// dropLocal evacuates every block to the parent. No allocation may follow.
func (l *Linkage) dropLocal() int {
	l.chain.Lock()
	defer l.chain.Unlock()

	head := l.head.Swap(nil)
	if head == nil {
		return 0
	}
	n := 0
	for b := head.prev; b != nil; n++ {
		prev := b.prev
		l.evacuateSide(b)
		b = prev
	}
	for b := head.next; b != nil; n++ {
		next := b.next
		l.evacuateSide(b)
		b = next
	}
	head.guard.Lock()
	head.clearHead()
	head.prev, head.next = nil, nil
	l.evacuate(head)
	return n + 1
}

func (l *Linkage) evacuateSide(b *Block) {
	b.guard.Lock()
	b.prev, b.next = nil, nil
	l.evacuate(b)
}
