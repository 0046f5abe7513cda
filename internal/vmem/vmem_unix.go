//go:build unix

package vmem

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/tierheap/internal/format"
)

// PageSize returns the OS page size.
func PageSize() int {
	return unix.Getpagesize()
}

// mapAligned over-maps 2*size bytes and trims the unaligned head and tail so
// exactly one aligned window of size bytes stays mapped.
func mapAligned(size uintptr) (*Region, error) {
	raw, err := unix.MmapPtr(-1, 0, nil, 2*size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		if errors.Is(err, unix.ENOMEM) {
			return nil, ErrNoMemory
		}
		return nil, fmt.Errorf("vmem: mmap %d bytes: %w", 2*size, err)
	}

	head := format.AlignUp(uintptr(raw), size) - uintptr(raw)
	tail := size - head
	if head > 0 {
		if err := unix.MunmapPtr(raw, head); err != nil {
			_ = unix.MunmapPtr(raw, 2*size)
			return nil, fmt.Errorf("vmem: trim head: %w", err)
		}
	}
	if tail > 0 {
		if err := unix.MunmapPtr(unsafe.Add(raw, head+size), tail); err != nil {
			_ = unix.MunmapPtr(unsafe.Add(raw, head), size+tail)
			return nil, fmt.Errorf("vmem: trim tail: %w", err)
		}
	}
	return &Region{ptr: unsafe.Add(raw, head), size: size}, nil
}

func unmap(r *Region) error {
	err := unix.MunmapPtr(r.ptr, r.size)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func release(b []byte) error {
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: madvise %d bytes: %w", len(b), err)
	}
	return nil
}
