// Package tid hands out owner identities for Local heaps.
//
// An ID stands in for a thread identifier: it is stable for as long as the
// holder keeps it and unique among IDs currently held. None (zero) is never
// issued and never owns a block.
package tid

import (
	"errors"
	"sync"
)

// ID identifies the owner of a Local heap.
type ID uint64

// None is the zero ID. Blocks owned by None always take the locked free path.
const None ID = 0

var (
	ErrUnsupported = errors.New("tid: owner identity not supported on this platform")
	ErrExhausted   = errors.New("tid: identity space exhausted")
)

// Source produces owner identities.
type Source interface {
	// Acquire returns an ID unique among IDs not yet released.
	Acquire() (ID, error)
	// Release returns id to the source. Sources may recycle it.
	Release(id ID)
}

// Registry is a process-local Source. IDs start at 1; released IDs are
// reused most recently released first. The zero value is ready to use.
type Registry struct {
	mu   sync.Mutex
	next ID
	free []ID
	live int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Acquire() (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		id := r.free[n-1]
		r.free = r.free[:n-1]
		r.live++
		return id, nil
	}
	if r.next == ^ID(0) {
		return None, ErrExhausted
	}
	r.next++
	r.live++
	return r.next, nil
}

// Release recycles id. Releasing None or an ID never issued is ignored.
func (r *Registry) Release(id ID) {
	if id == None {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id > r.next {
		return
	}
	for _, f := range r.free {
		if f == id {
			return
		}
	}
	r.free = append(r.free, id)
	r.live--
}

// Live returns how many IDs are currently held.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// Default is the registry used when a heap is built without a Source.
var Default = NewRegistry()
