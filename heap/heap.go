package heap

import (
	"unsafe"

	"github.com/joshuapare/tierheap/heap/tid"
)

// core is the state shared by every heap tier.
type core struct {
	parent *Regional // nil for Root
	root   *Root
	lkgs   []*Linkage // Indexed by size class; 0 is the unformatted pool
}

func (c *core) init(parent, up *Regional, root *Root, local bool) {
	c.parent = parent
	c.root = root
	c.lkgs = make([]*Linkage, root.classes.numClasses())
	for i := range c.lkgs {
		c.lkgs[i] = newLinkage(i, local, up, root)
	}
}

// Census returns the number of blocks held per size class.
func (c *core) Census() []int {
	out := make([]int, len(c.lkgs))
	for i, l := range c.lkgs {
		out[i] = l.len()
	}
	return out
}

// Local is a heap owned by a single goroutine. Every method, Free included,
// must be called from the owning goroutine only. Other goroutines free
// through Regional.Free or through their own Local heap.
type Local struct {
	core
	owner  tid.ID
	closed bool
}

// Owner returns the Local heap's owner identity.
func (h *Local) Owner() tid.ID { return h.owner }

// Alloc returns an object of at least size bytes. The memory is not zeroed.
func (h *Local) Alloc(size int) (unsafe.Pointer, error) {
	if err := h.usable(); err != nil {
		return nil, err
	}
	class, _, err := h.root.classes.lookup(size)
	if err != nil {
		return nil, h.root.fail(err, "alloc %d bytes", size)
	}
	p, err := h.lkgs[class].allocLocal(h)
	if err != nil {
		return nil, h.root.cascade(err, "alloc %d bytes", size)
	}
	if logAlloc {
		h.root.log().Debug("alloc", "owner", uint64(h.owner), "size", size, "class", class, "ptr", p)
	}
	return p, nil
}

// AllocBytes is Alloc returning a slice of exactly size bytes.
func (h *Local) AllocBytes(size int) ([]byte, error) {
	p, err := h.Alloc(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), size), nil
}

// Free returns p to its block. Objects from blocks this heap owns are freed
// without locking, so Free is for the owning goroutine only.
func (h *Local) Free(p unsafe.Pointer) error {
	if h.root == nil {
		return ErrHierarchy
	}
	if h.closed {
		// The owner ID may already belong to a newer Local.
		return ErrClosed
	}
	if logAlloc {
		h.root.log().Debug("free", "owner", uint64(h.owner), "ptr", p)
	}
	return h.root.free(p, h.owner)
}

// Destroy evacuates every block to the parent heap, releases the owner
// identity and detaches from the parent.
func (h *Local) Destroy() error {
	if err := h.usable(); err != nil {
		return err
	}
	blocks := 0
	for _, l := range h.lkgs {
		blocks += l.dropLocal()
	}
	h.closed = true
	h.root.opts.Threads.Release(h.owner)
	h.root.log().Debug("local heap destroyed", "owner", uint64(h.owner), "blocks", blocks)

	parent := h.parent
	h.parent = nil
	parent.decref()
	return nil
}

func (h *Local) usable() error {
	if h.closed {
		return ErrClosed
	}
	if h.parent == nil || h.root == nil {
		if h.root != nil {
			return h.root.fail(ErrHierarchy, "local heap %d", h.owner)
		}
		return ErrHierarchy
	}
	return nil
}

// requestBlock returns a block of the class, guard held: the heap's own
// unformatted pool first, then the parent.
func (h *Local) requestBlock(class int) (*Block, error) {
	if b := h.lkgs[0].request(nil); b != nil {
		if err := b.format(h.root.classes.objectSize(class)); err != nil {
			b.guard.Unlock()
			return nil, err
		}
		return b, nil
	}
	if h.parent == nil {
		return nil, h.root.fail(ErrHierarchy, "local heap %d requests without parent", h.owner)
	}
	b, err := h.parent.requestBlock(class)
	if err != nil {
		return nil, h.root.cascade(err, "local heap %d request class %d", h.owner, class)
	}
	return b, nil
}
