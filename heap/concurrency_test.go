package heap

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// liveSet tracks addresses that are currently handed out.
type liveSet struct {
	mu   sync.Mutex
	live map[uintptr]int
}

func (s *liveSet) add(t testing.TB, p unsafe.Pointer, who int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.live[uintptr(p)]; ok {
		t.Errorf("address %p handed to worker %d while still held by worker %d", p, who, prev)
	}
	s.live[uintptr(p)] = who
}

func (s *liveSet) remove(p unsafe.Pointer) {
	s.mu.Lock()
	delete(s.live, uintptr(p))
	s.mu.Unlock()
}

// TestConcurrentNoDoubleAllocation runs owners that allocate and hand half
// of their objects to other goroutines for freeing.
func TestConcurrentNoDoubleAllocation(t *testing.T) {
	root := newTestRoot(t, scenarioConfig, nil)
	region, err := root.NewRegional()
	require.NoError(t, err)

	const workers, rounds, batch = 8, 40, 64
	set := &liveSet{live: map[uintptr]int{}}
	handoff := make(chan unsafe.Pointer, workers*batch)

	var freers sync.WaitGroup
	for i := 0; i < 4; i++ {
		freers.Add(1)
		go func() {
			defer freers.Done()
			for p := range handoff {
				set.remove(p)
				if err := region.Free(p); err != nil {
					t.Errorf("foreign free: %v", err)
				}
			}
		}()
	}

	locals := make([]*Local, workers)
	for i := range locals {
		locals[i] = newTestLocal(t, region)
	}

	var owners sync.WaitGroup
	for w := 0; w < workers; w++ {
		owners.Add(1)
		go func(w int, h *Local) {
			defer owners.Done()
			mine := make([]unsafe.Pointer, 0, batch)
			for r := 0; r < rounds; r++ {
				for i := 0; i < batch; i++ {
					size := 16 + (w*37+i*13)%400
					p, err := h.Alloc(size)
					if err != nil {
						t.Errorf("alloc: %v", err)
						return
					}
					set.add(t, p, w)
					*(*uint64)(p) = uint64(w)<<32 | uint64(i)
					mine = append(mine, p)
				}
				for i, p := range mine {
					if got := *(*uint64)(p); got != uint64(w)<<32|uint64(i) {
						t.Errorf("worker %d object %d overwritten: %#x", w, i, got)
					}
					if i%2 == 0 {
						handoff <- p
						continue
					}
					set.remove(p)
					if err := h.Free(p); err != nil {
						t.Errorf("local free: %v", err)
					}
				}
				mine = mine[:0]
			}
		}(w, locals[w])
	}
	owners.Wait()
	close(handoff)
	freers.Wait()

	require.Empty(t, set.live)
	requireConserved(t, root)
	forEachBlock(root, func(b *Block) {
		require.Zero(t, b.live.Load())
	})

	for _, h := range locals {
		require.NoError(t, h.Destroy())
	}
	require.EqualValues(t, 1, root.Stats().Drops)
	require.Equal(t, 63*root.Chunks(), root.Census()[0], "every block returns to the root unformatted pool")
	requireConserved(t, root)
}

// TestConcurrentLocalTeardown destroys Local heaps while other goroutines
// are still freeing their objects.
func TestConcurrentLocalTeardown(t *testing.T) {
	root := newTestRoot(t, scenarioConfig, nil)
	region, err := root.NewRegional()
	require.NoError(t, err)
	anchor := newTestLocal(t, region)

	const workers = 6
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		h := newTestLocal(t, region)
		ptrs := allocN(t, h, 128, 300)

		wg.Add(2)
		go func() {
			defer wg.Done()
			for _, p := range ptrs {
				if err := region.Free(p); err != nil {
					t.Errorf("free: %v", err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			if err := h.Destroy(); err != nil {
				t.Errorf("destroy: %v", err)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, region.Refs())
	forEachBlock(root, func(b *Block) {
		require.Zero(t, b.live.Load())
	})
	requireConserved(t, root)

	require.NoError(t, anchor.Destroy())
	require.Equal(t, 63*root.Chunks(), root.Census()[0])
}

// TestSlideLeftKeepsSingleHead watches a linkage from another goroutine
// while the owner keeps exhausting heads.
func TestSlideLeftKeepsSingleHead(t *testing.T) {
	root := newTestRoot(t, scenarioConfig, nil)
	h := newTestLocal(t, &root.Regional)
	l := h.lkgs[2]

	done := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			l.chain.Lock()
			heads := 0
			forEachBlock(root, func(b *Block) {
				if b.lkg.Load() == l && b.isHead() {
					heads++
				}
			})
			l.chain.Unlock()
			if heads > 1 {
				t.Errorf("%d blocks flagged head in one linkage", heads)
				return
			}
		}
	}()

	ptrs := allocN(t, h, 256, 16*40)
	close(done)
	watcher.Wait()

	require.EqualValues(t, 39, root.Stats().SlidesLeft)
	for _, p := range ptrs {
		require.NoError(t, h.Free(p))
	}
	require.NoError(t, h.Destroy())
}

// TestHandoffToAnotherLocal hands objects to a goroutine that frees them
// through its own Local heap, which must take the foreign path.
func TestHandoffToAnotherLocal(t *testing.T) {
	root := newTestRoot(t, scenarioConfig, nil)
	region, err := root.NewRegional()
	require.NoError(t, err)
	owner := newTestLocal(t, region)
	other := newTestLocal(t, region)
	require.NotEqual(t, owner.Owner(), other.Owner())

	const n = 2000
	handoff := make(chan unsafe.Pointer, 64)
	var freer sync.WaitGroup
	freer.Add(1)
	go func() {
		defer freer.Done()
		for p := range handoff {
			if err := other.Free(p); err != nil {
				t.Errorf("free through other local: %v", err)
			}
		}
	}()

	for i := 0; i < n; i++ {
		p, err := owner.Alloc(64)
		require.NoError(t, err)
		*(*uint64)(p) = uint64(i)
		handoff <- p
	}
	close(handoff)
	freer.Wait()

	require.EqualValues(t, n, root.Stats().ForeignFrees)
	requireConserved(t, root)
	forEachBlock(root, func(b *Block) {
		require.Zero(t, b.live.Load())
	})
	require.NoError(t, owner.Destroy())
	require.NoError(t, other.Destroy())
}
