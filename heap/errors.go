package heap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/tierheap/pkg/diag"
)

var (
	// ErrBadConfig indicates a configuration that fails validation.
	ErrBadConfig = errors.New("heap: bad configuration")

	// ErrBadSize indicates a requested size of zero or less.
	ErrBadSize = errors.New("heap: size must be positive")

	// ErrTooLarge indicates a size above the largest size class.
	ErrTooLarge = errors.New("heap: size exceeds largest size class")

	// ErrBadPointer indicates a pointer that was not returned by this hierarchy
	// or is misaligned for its block. Freeing the object at the top of a free
	// list again is always caught; deeper double frees only in debug builds.
	ErrBadPointer = errors.New("heap: pointer not owned by heap")

	// ErrHierarchy indicates a heap used without the parent it needs.
	ErrHierarchy = errors.New("heap: heap has no parent")

	// ErrOutOfMemory indicates the OS refused to map a new chunk.
	ErrOutOfMemory = errors.New("heap: chunk allocation failed")

	// ErrNoOwner indicates the owner identity source could not issue an ID.
	ErrNoOwner = errors.New("heap: cannot acquire owner identity")

	// ErrImpossible indicates an internal invariant was violated.
	ErrImpossible = errors.New("heap: invariant violated")

	// ErrDesync indicates a compare-and-swap on shared state lost to a writer
	// that should not exist.
	ErrDesync = errors.New("heap: concurrent state desynchronized")

	// ErrInUse indicates a heap that still has children attached.
	ErrInUse = errors.New("heap: heap still has children")

	// ErrClosed indicates a heap that was destroyed or dropped.
	ErrClosed = errors.New("heap: heap closed")
)

// kindOf maps an error to the diagnostic kind it is reported under.
func kindOf(err error) diag.Kind {
	switch {
	case errors.Is(err, ErrBadConfig):
		return diag.BadConfig
	case errors.Is(err, ErrBadSize), errors.Is(err, ErrTooLarge), errors.Is(err, ErrBadPointer):
		return diag.BadValue
	case errors.Is(err, ErrHierarchy), errors.Is(err, ErrInUse), errors.Is(err, ErrClosed):
		return diag.Hierarchy
	case errors.Is(err, ErrOutOfMemory):
		return diag.ChunkAllocDry
	case errors.Is(err, ErrNoOwner):
		return diag.StructAlloc
	case errors.Is(err, ErrDesync):
		return diag.Desync
	default:
		return diag.Impossible
	}
}

// fail wraps err with context and reports it when reporting is enabled.
func (r *Root) fail(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r != nil {
		r.report(diag.Report{Kind: kindOf(err), Msg: msg, Err: err})
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// cascade annotates a failure returned by a delegated call.
func (r *Root) cascade(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if r != nil {
		r.report(diag.Report{Kind: diag.Cascade, Msg: msg, Err: err})
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (r *Root) report(rep diag.Report) {
	if !debugChecks && !r.opts.Verbose {
		return
	}
	r.sink().Report(rep)
}
