package heap

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/tierheap/heap/tid"
)

// refsDropped marks a Regional heap that has been torn down.
const refsDropped = -1 << 62

// Regional groups child heaps and caches the blocks they give back. Its
// reference count is the number of attached children; when the last child
// leaves, every cached block moves to the parent and the parent is released.
type Regional struct {
	refs atomic.Int64
	core
}

// NewRegional attaches a child Regional heap.
func (r *Regional) NewRegional() (*Regional, error) {
	if err := r.incref(); err != nil {
		return nil, err
	}
	child := &Regional{}
	child.init(r, r, r.root, false)
	return child, nil
}

// NewLocal attaches a Local heap with a fresh owner identity.
func (r *Regional) NewLocal() (*Local, error) {
	id, err := r.root.opts.Threads.Acquire()
	if err != nil {
		return nil, r.root.fail(fmt.Errorf("%w: %w", ErrNoOwner, err), "new local heap")
	}
	if id == tid.None {
		return nil, r.root.fail(ErrNoOwner, "owner source returned the zero id")
	}
	if err := r.incref(); err != nil {
		r.root.opts.Threads.Release(id)
		return nil, err
	}
	h := &Local{owner: id}
	h.init(r, r, r.root, true)
	return h, nil
}

// Free returns p from a goroutine that owns no heap. It always takes the
// locked path.
func (r *Regional) Free(p unsafe.Pointer) error {
	return r.root.free(p, tid.None)
}

// Refs returns the number of attached children.
func (r *Regional) Refs() int64 {
	return max(r.refs.Load(), 0)
}

// Close drops a Regional heap that has no children. Closing the Root
// destroys it.
func (r *Regional) Close() error {
	if r.parent == nil {
		return r.root.Destroy()
	}
	if !r.refs.CompareAndSwap(0, refsDropped) {
		if r.refs.Load() < 0 {
			return ErrClosed
		}
		return r.root.fail(ErrInUse, "close regional heap with %d children", r.Refs())
	}
	r.drop()
	return nil
}

func (r *Regional) incref() error {
	for {
		n := r.refs.Load()
		if n < 0 {
			return r.root.fail(ErrClosed, "attach to dropped heap")
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// decref detaches one child. The last detach drops a non-root heap.
func (r *Regional) decref() {
	n := r.refs.Add(-1)
	if n < 0 && n > refsDropped/2 {
		r.root.fail(ErrImpossible, "regional heap refcount underflow")
		return
	}
	if n != 0 || r.parent == nil {
		return
	}
	if r.refs.CompareAndSwap(0, refsDropped) {
		r.drop()
	}
}

// drop evacuates every linkage to the parent and detaches from it. It runs
// once, after the heap has been marked dropped.
func (r *Regional) drop() {
	blocks := 0
	for _, l := range r.lkgs {
		blocks += l.drain()
	}
	r.root.stats.drops.Add(1)
	r.root.log().Debug("regional heap dropped", "blocks", blocks)
	r.parent.decref()
}

// requestBlock returns a block of the class, guard held: the unformatted
// pool, then already-formatted blocks of the class with room, then the
// parent. The Root mints a chunk instead.
func (r *Regional) requestBlock(class int) (*Block, error) {
	if b := r.lkgs[0].request(nil); b != nil {
		if err := b.format(r.root.classes.objectSize(class)); err != nil {
			b.guard.Unlock()
			return nil, err
		}
		return b, nil
	}
	if b := r.lkgs[class].request(hasRoom); b != nil {
		return b, nil
	}
	if r.parent != nil {
		b, err := r.parent.requestBlock(class)
		if err != nil {
			return nil, r.root.cascade(err, "regional request class %d", class)
		}
		return b, nil
	}
	if r != &r.root.Regional {
		return nil, r.root.fail(ErrHierarchy, "regional heap without parent")
	}
	b, err := r.root.grow()
	if err != nil {
		return nil, err
	}
	if err := b.format(r.root.classes.objectSize(class)); err != nil {
		b.guard.Unlock()
		return nil, err
	}
	return b, nil
}

func hasRoom(b *Block) bool { return b.live.Load() < int32(b.ocnt) }

// takeEvacuated files a block leaving a child heap: empty blocks go to the
// unformatted pool, partially used ones to the linkage of their size class.
// Caller holds b.guard.
func (r *Regional) takeEvacuated(b *Block) {
	class := 0
	if b.live.Load() != 0 {
		class = r.root.classes.classOf(int(b.osz))
	}
	if class <= 0 {
		class = 0
	}
	r.lkgs[class].receive(b)
}
