package heap

import (
	"fmt"

	"github.com/joshuapare/tierheap/internal/format"
	"github.com/joshuapare/tierheap/pkg/config"
)

// firstClass is the smallest size class handed out. Class 0 is the
// unformatted pool and class 1 is reserved.
const firstClass = 2

// sizeClassTable holds the object size of every class.
//
// The largest class holds at least eight objects per block; every lower class
// halves the one above it, floored at MinObjectSize. With a 32 KiB pool and
// ten classes:
//
//	Class 2:    32 bytes
//	Class 3:    64 bytes
//	Class 4:   128 bytes
//	...
//	Class 9:  4096 bytes
type sizeClassTable struct {
	sizes    []int // Indexed by class; entries 0 and 1 are unused
	poolSize int
}

func newSizeClassTable(poolSize, poolCount int) *sizeClassTable {
	t := &sizeClassTable{
		sizes:    make([]int, poolCount),
		poolSize: poolSize,
	}
	size := format.AlignDown8(poolSize / 8)
	for c := poolCount - 1; c >= firstClass; c-- {
		t.sizes[c] = max(size, format.MinObjectSize)
		size = format.AlignDown8(size / 2)
	}
	return t
}

// getSizeClass returns the smallest class whose objects fit size.
// Returns -1 when size exceeds the largest class.
func (t *sizeClassTable) getSizeClass(size int) int {
	lo, hi := firstClass, len(t.sizes)-1
	if size > t.sizes[hi] {
		return -1
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if size <= t.sizes[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// classOf maps a formatted block's object size back to its class.
func (t *sizeClassTable) classOf(osz int) int {
	return t.getSizeClass(osz)
}

func (t *sizeClassTable) objectSize(class int) int { return t.sizes[class] }

func (t *sizeClassTable) objectCount(class int) int { return t.poolSize / t.sizes[class] }

func (t *sizeClassTable) maxSize() int { return t.sizes[len(t.sizes)-1] }

func (t *sizeClassTable) numClasses() int { return len(t.sizes) }

// Canonicalize maps a request size to its size class and object size under
// cfg. The class is always >= 2.
func Canonicalize(cfg config.Config, size int) (class, objectSize int, err error) {
	if err := cfg.Validate(0); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	return newSizeClassTable(cfg.PoolSize, cfg.PoolCount).lookup(size)
}

func (t *sizeClassTable) lookup(size int) (int, int, error) {
	if size <= 0 {
		return 0, 0, ErrBadSize
	}
	c := t.getSizeClass(size)
	if c < 0 {
		return 0, 0, fmt.Errorf("%w: %d > %d", ErrTooLarge, size, t.maxSize())
	}
	return c, t.sizes[c], nil
}

// SizeClasses returns the object size of every class under cfg, indexed by
// class. Entries 0 and 1 are zero.
func SizeClasses(cfg config.Config) ([]int, error) {
	if err := cfg.Validate(0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	return newSizeClassTable(cfg.PoolSize, cfg.PoolCount).sizes, nil
}
