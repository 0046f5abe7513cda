// Package diag is the error and assert sink used by the allocator.
//
// The heap never prints or panics on its own. Every failure is returned to the
// caller as an error; in debug builds (or when verbose reporting is enabled)
// the same failure is also delivered to a Sink as a structured Report.
package diag

// Kind classifies a report.
type Kind uint8

const (
	BadConfig     Kind = iota + 1 // Configuration value rejected
	BadValue                      // Bad call-site argument
	Impossible                    // Invariant violated
	Desync                        // Concurrent state changed under an expected compare-and-swap
	Hierarchy                     // Heap used outside its hierarchy (orphaned, closed)
	StructAlloc                   // Allocation of a bookkeeping structure failed
	ChunkAllocDry                 // OS refused to map a chunk
	Cascade                       // Failure reported by a delegated call
)

func (k Kind) String() string {
	switch k {
	case BadConfig:
		return "BAD_CONFIG"
	case BadValue:
		return "BAD_VALUE"
	case Impossible:
		return "IMPOSSIBLE"
	case Desync:
		return "DESYNC"
	case Hierarchy:
		return "HIERARCHY"
	case StructAlloc:
		return "STRUCT_ALLOC"
	case ChunkAllocDry:
		return "CHUNK_ALLOC_DRY"
	case Cascade:
		return "CASCADE"
	default:
		return "UNKNOWN"
	}
}

// Fatal reports whether the kind signals corrupted or unrecoverable state.
func (k Kind) Fatal() bool {
	return k == Impossible || k == Desync || k == ChunkAllocDry
}
