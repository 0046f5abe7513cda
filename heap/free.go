package heap

import (
	"unsafe"

	"github.com/joshuapare/tierheap/heap/tid"
	"github.com/joshuapare/tierheap/internal/format"
)

// lookup maps an object address to its block.
func (r *Root) lookup(p unsafe.Pointer) (*Block, error) {
	if p == nil {
		return nil, ErrBadPointer
	}
	c := r.chunkOf(p)
	if c == nil {
		return nil, ErrBadPointer
	}
	b, err := c.blockAt(p)
	if err != nil {
		return nil, err
	}
	if debugChecks {
		rec, err := format.ReadBlockRecord(c.header(), b.index)
		if err != nil || uint32(rec.ObjSize) != b.osz || uint32(rec.ObjCount) != b.ocnt {
			return nil, r.fail(ErrImpossible, "block %d/%d disagrees with its header record", c.id, b.index)
		}
	}
	return b, nil
}

// free returns p on behalf of self.
func (r *Root) free(p unsafe.Pointer, self tid.ID) error {
	b, err := r.lookup(p)
	if err != nil {
		return r.fail(err, "free %p", p)
	}
	return b.dealloc(p, self)
}
