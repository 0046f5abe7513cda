package vmem

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"
)

func TestMapAlignedIsSelfAligned(t *testing.T) {
	for _, size := range []int{1 << 16, 1 << 20, 2 << 20} {
		r, err := MapAligned(size)
		if err != nil {
			t.Fatalf("MapAligned(%d): %v", size, err)
		}
		if got := uintptr(r.Pointer()) % uintptr(size); got != 0 {
			t.Fatalf("region of %d bytes misaligned by %d", size, got)
		}
		if r.Len() != size {
			t.Fatalf("Len = %d, want %d", r.Len(), size)
		}

		b := r.Bytes()
		b[0], b[size-1] = 0xAB, 0xCD
		if b[0] != 0xAB || b[size-1] != 0xCD {
			t.Fatalf("region not writable")
		}

		inner := unsafe.Add(r.Pointer(), size/2)
		if !r.Contains(inner) {
			t.Fatalf("Contains(interior) = false")
		}
		if base := uintptr(inner) &^ uintptr(size-1); base != uintptr(r.Pointer()) {
			t.Fatalf("masked base %#x != region base %#x", base, uintptr(r.Pointer()))
		}

		if err := r.Unmap(); err != nil {
			t.Fatalf("Unmap: %v", err)
		}
		if err := r.Unmap(); err != nil {
			t.Fatalf("second Unmap: %v", err)
		}
		if r.Pointer() != nil || r.Bytes() != nil {
			t.Fatalf("region still reachable after Unmap")
		}
	}
}

func TestMapAlignedBadSize(t *testing.T) {
	for _, size := range []int{0, 3, PageSize() + 1, PageSize() / 2} {
		if _, err := MapAligned(size); !errors.Is(err, ErrBadSize) {
			t.Fatalf("MapAligned(%d): expected ErrBadSize, got %v", size, err)
		}
	}
}

func TestPageSizeIsPowerOfTwo(t *testing.T) {
	ps := PageSize()
	if ps <= 0 || ps&(ps-1) != 0 {
		t.Fatalf("PageSize = %d", ps)
	}
}

func TestReleaseZeroesWholePages(t *testing.T) {
	page := PageSize()
	size := 16 * page
	r, err := MapAligned(size)
	if err != nil {
		t.Fatalf("MapAligned: %v", err)
	}
	defer r.Unmap()

	b := r.Bytes()
	for i := range b {
		b[i] = 0x5A
	}

	// Only the page wholly inside the range goes.
	n, err := r.Release(page+1, 3*page-2)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n != page {
		t.Fatalf("released %d bytes, want %d", n, page)
	}
	if runtime.GOOS == "linux" && (b[2*page] != 0 || b[3*page-1] != 0) {
		t.Fatalf("released page not zeroed")
	}
	if b[page+1] != 0x5A || b[3*page] != 0x5A {
		t.Fatalf("partial pages were released")
	}

	if n, err := r.Release(1, page-2); err != nil || n != 0 {
		t.Fatalf("sub-page Release = %d, %v; want 0, nil", n, err)
	}
	if _, err := r.Release(size-page, 2*page); !errors.Is(err, ErrBadSize) {
		t.Fatalf("out-of-range Release err = %v, want ErrBadSize", err)
	}
}
