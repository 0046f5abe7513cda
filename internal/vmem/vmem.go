// Package vmem obtains self-aligned regions of raw memory for allocator
// chunks and gives them back.
//
// A region of size N is aligned to N, so the region's base can be recovered
// from any interior address by masking off the low bits. On unix the memory
// comes from anonymous private mappings and is invisible to the Go garbage
// collector; elsewhere it falls back to a pinned Go byte slice.
package vmem

import (
	"errors"
	"unsafe"

	"github.com/joshuapare/tierheap/internal/format"
)

var (
	// ErrBadSize indicates a size that is not a power of two or not a multiple
	// of the page size.
	ErrBadSize = errors.New("vmem: size must be a power of two and a multiple of the page size")

	// ErrNoMemory indicates the OS refused to provide the mapping.
	ErrNoMemory = errors.New("vmem: out of memory")
)

// Region is a self-aligned block of raw memory.
type Region struct {
	ptr  unsafe.Pointer
	size uintptr
	keep []byte // backing slice on platforms without anonymous mmap
}

// Pointer returns the aligned base of the region, or nil once unmapped.
func (r *Region) Pointer() unsafe.Pointer {
	return r.ptr
}

// Len returns the region size in bytes.
func (r *Region) Len() int {
	return int(r.size)
}

// Bytes returns a byte view of the whole region.
func (r *Region) Bytes() []byte {
	if r.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(r.ptr), r.size)
}

// Contains reports whether p points inside the region.
func (r *Region) Contains(p unsafe.Pointer) bool {
	if r.ptr == nil {
		return false
	}
	a, base := uintptr(p), uintptr(r.ptr)
	return a >= base && a < base+r.size
}

// MapAligned returns a region of size bytes aligned to size.
func MapAligned(size int) (*Region, error) {
	if !format.IsPow2(size) || size%PageSize() != 0 {
		return nil, ErrBadSize
	}
	return mapAligned(uintptr(size))
}

// Unmap releases the region. Unmapping twice is a no-op.
func (r *Region) Unmap() error {
	if r == nil || r.ptr == nil {
		return nil
	}
	err := unmap(r)
	r.ptr, r.keep = nil, nil
	return err
}

// Release tells the OS the bytes in [off, off+n) are no longer needed. The
// range is shrunk inward to whole pages. The memory stays mapped but its
// contents are undefined afterwards (zero on Linux). It returns the bytes
// released.
func (r *Region) Release(off, n int) (int, error) {
	if r.ptr == nil || off < 0 || n < 0 || off+n > int(r.size) {
		return 0, ErrBadSize
	}
	page := uintptr(PageSize())
	start := format.AlignUp(uintptr(off), page)
	end := format.AlignDown(uintptr(off+n), page)
	if end <= start {
		return 0, nil
	}
	if err := release(r.Bytes()[start:end]); err != nil {
		return 0, err
	}
	return int(end - start), nil
}
