package heap

import (
	"io"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// counters are updated on slow paths only; the alloc and local free fast
// paths are not counted.
type counters struct {
	chunksMinted    atomic.Int64
	chunksDestroyed atomic.Int64
	blocksFormatted atomic.Int64
	blocksEvacuated atomic.Int64
	slidesLeft      atomic.Int64
	slidesRight     atomic.Int64
	foreignFrees    atomic.Int64
	emptyEnough     atomic.Int64
	drops           atomic.Int64
	bytesTrimmed    atomic.Int64
}

// Stats is a snapshot of a hierarchy's counters.
type Stats struct {
	ChunksMinted    int64 `json:"chunks_minted"`
	ChunksLive      int64 `json:"chunks_live"`
	BytesMapped     int64 `json:"bytes_mapped"`
	BlocksFormatted int64 `json:"blocks_formatted"`
	BlocksEvacuated int64 `json:"blocks_evacuated"`
	SlidesLeft      int64 `json:"slides_left"`
	SlidesRight     int64 `json:"slides_right"`
	ForeignFrees    int64 `json:"foreign_frees"`
	EmptyEnough     int64 `json:"empty_enough"`
	Drops           int64 `json:"drops"`
	BytesTrimmed    int64 `json:"bytes_trimmed"`
}

// Stats returns the hierarchy's counters.
func (r *Root) Stats() Stats {
	live := int64(r.Chunks())
	return Stats{
		ChunksMinted:    r.stats.chunksMinted.Load(),
		ChunksLive:      live,
		BytesMapped:     live * int64(r.cfg.ChunkSize),
		BlocksFormatted: r.stats.blocksFormatted.Load(),
		BlocksEvacuated: r.stats.blocksEvacuated.Load(),
		SlidesLeft:      r.stats.slidesLeft.Load(),
		SlidesRight:     r.stats.slidesRight.Load(),
		ForeignFrees:    r.stats.foreignFrees.Load(),
		EmptyEnough:     r.stats.emptyEnough.Load(),
		Drops:           r.stats.drops.Load(),
		BytesTrimmed:    r.stats.bytesTrimmed.Load(),
	}
}

// Print writes a human-readable report with grouped digits.
func (s Stats) Print(w io.Writer) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "\n=== HEAP STATISTICS ===\n")
	p.Fprintf(w, "Chunks:             %d live (%d minted, %d KB mapped)\n", s.ChunksLive, s.ChunksMinted, s.BytesMapped/1024)
	p.Fprintf(w, "Blocks formatted:   %d\n", s.BlocksFormatted)
	p.Fprintf(w, "Blocks evacuated:   %d\n", s.BlocksEvacuated)
	p.Fprintf(w, "Slides:             %d left, %d right\n", s.SlidesLeft, s.SlidesRight)
	p.Fprintf(w, "Foreign frees:      %d\n", s.ForeignFrees)
	p.Fprintf(w, "Empty-enough:       %d\n", s.EmptyEnough)
	p.Fprintf(w, "Regional drops:     %d\n", s.Drops)
	p.Fprintf(w, "Trimmed:            %d KB\n", s.BytesTrimmed/1024)
}
