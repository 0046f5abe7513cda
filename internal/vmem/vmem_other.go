//go:build !unix

package vmem

import (
	"os"
	"unsafe"

	"github.com/joshuapare/tierheap/internal/format"
)

// PageSize returns the OS page size.
func PageSize() int {
	return os.Getpagesize()
}

// mapAligned allocates 2*size bytes on the Go heap and keeps an aligned
// window of it. The Go heap does not move objects, so the window is stable
// for as long as the region holds the backing slice.
func mapAligned(size uintptr) (*Region, error) {
	buf := make([]byte, 2*size)
	p := unsafe.Pointer(&buf[0])
	head := format.AlignUp(uintptr(p), size) - uintptr(p)
	return &Region{ptr: unsafe.Add(p, head), size: size, keep: buf}, nil
}

func unmap(*Region) error {
	return nil
}

func release(b []byte) error {
	clear(b)
	return nil
}
