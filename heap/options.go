package heap

import (
	"log/slog"
	"os"

	"github.com/joshuapare/tierheap/heap/tid"
	"github.com/joshuapare/tierheap/internal/logger"
	"github.com/joshuapare/tierheap/pkg/diag"
)

// Runtime allocation logging, controlled by the TIERHEAP_LOG_ALLOC env var.
var logAlloc = os.Getenv("TIERHEAP_LOG_ALLOC") != ""

// Options configures a heap hierarchy. The zero value is usable.
type Options struct {
	// Sink receives diagnostic reports. Reports are only produced in builds
	// tagged tierheap_debug or when Verbose is set. Default: a diag.LogSink on
	// the heap's logger.
	Sink diag.Sink

	// Threads issues owner identities for Local heaps. Default: tid.Default.
	Threads tid.Source

	// OnEmptyEnough is called when a non-head block of a size class drops to
	// half of its capacity. It runs on the freeing goroutine after the chain
	// lock is released and must not block.
	OnEmptyEnough func(BlockInfo)

	// RequeueHalfEmpty moves a half-empty block of a Local linkage to sit
	// right of the head, so the owner slides onto it before pulling a new
	// block from its parent.
	RequeueHalfEmpty bool

	// Logger overrides the package logger.
	Logger *slog.Logger

	// Verbose reports diagnostics to Sink in release builds too.
	Verbose bool
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Threads == nil {
		out.Threads = tid.Default
	}
	return out
}

func (r *Root) sink() diag.Sink {
	if r.opts.Sink != nil {
		return r.opts.Sink
	}
	return diag.LogSink{Logger: r.log()}
}

func (r *Root) log() *slog.Logger {
	if r.opts.Logger != nil {
		return r.opts.Logger
	}
	return logger.L
}

// BlockInfo describes a block at the moment a notification fires.
type BlockInfo struct {
	Chunk       uint32 // Chunk id
	Index       int    // Block index within the chunk
	Class       int    // Size class
	ObjectSize  int
	ObjectCount int
	Live        int
	Owner       tid.ID
}
