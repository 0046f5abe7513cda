// Package heap provides a tiered small-object allocator.
//
// # Overview
//
// Memory is obtained from the OS in self-aligned chunks, each sliced into 63
// blocks. A block serves objects of one size class and keeps an intrusive free
// list inside the free objects themselves (a 16-bit byte offset, 0xFFFF ends
// the list). Blocks are chained into linkages, one linkage per size class plus
// class 0 for unformatted blocks, and linkages belong to heaps.
//
// # Heap Hierarchy
//
//   - Local: owned by one goroutine, allocates without locks from the head
//     block of each linkage.
//   - Regional: groups Local heaps and child Regional heaps, caches blocks
//     they give back, and is dropped when its last child leaves.
//   - Root: the top of the hierarchy; mints chunks and owns them until Destroy.
//
// # Usage Example
//
//	root, err := heap.NewRoot(config.Default(), nil)
//	if err != nil {
//	    return err
//	}
//	defer root.Destroy()
//
//	region, _ := root.NewRegional()
//	local, _ := region.NewLocal()
//	defer local.Destroy()
//
//	p, err := local.Alloc(64)
//	if err != nil {
//	    return err
//	}
//	// ... another goroutine frees p through the Regional or its own Local
//	err = region.Free(p)
//
// # Allocation
//
// A Local heap allocates from the head block of the class linkage. When the
// head is exhausted it slides right onto a half-empty neighbour queued next to
// the head (see Options.RequeueHalfEmpty) or slides left by pulling a block up
// the hierarchy: its own unformatted pool, then each Regional's unformatted
// pool and sized cache, and finally a fresh chunk from the Root.
//
// # Deallocation
//
// Frees by the owning Local heap push onto the block's local free list without
// locking. A Local heap's Free is therefore only safe on its owner goroutine;
// other goroutines use Regional.Free or their own Local. Every other free takes the block's guard lock and pushes onto the
// foreign list, which the owner adopts once its local list runs dry. A block
// that empties while it is not the allocation target is evacuated to the
// parent heap's unformatted pool.
//
// # Locking
//
// Each linkage has a chain lock and each block a guard lock. Locks are always
// taken chain before guard, the current head before its neighbour, and a child
// heap's locks before its parent's. No lock is held across a request to the
// parent heap.
//
// # Memory
//
// Chunk memory is mapped outside the Go heap. Objects must not hold the only
// reference to Go-allocated values; the garbage collector does not scan them.
package heap
