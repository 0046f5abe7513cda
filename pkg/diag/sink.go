package diag

import (
	"fmt"
	"log/slog"
	"sync"
)

// Report is a single structured diagnostic.
type Report struct {
	Kind Kind
	Msg  string
	Err  error // Underlying error, may be nil
}

// Newf builds a report with a formatted message.
func Newf(kind Kind, err error, format string, args ...any) Report {
	return Report{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (r Report) String() string {
	if r.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", r.Kind, r.Msg, r.Err)
	}
	return fmt.Sprintf("[%s] %s", r.Kind, r.Msg)
}

// Sink receives reports. Implementations must be safe for concurrent use.
type Sink interface {
	Report(r Report)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Report)

func (f SinkFunc) Report(r Report) { f(r) }

// Discard drops every report.
var Discard Sink = SinkFunc(func(Report) {})

// LogSink writes reports to a structured logger. Fatal kinds are logged at
// error level, the rest at warn.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Report(r Report) {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	args := []any{"kind", r.Kind.String()}
	if r.Err != nil {
		args = append(args, "err", r.Err)
	}
	if r.Kind.Fatal() {
		l.Error(r.Msg, args...)
		return
	}
	l.Warn(r.Msg, args...)
}

// PanicSink panics on fatal kinds and forwards everything else to Next
// (or drops it when Next is nil). Useful for test binaries that must stop at
// the first corrupted state.
type PanicSink struct {
	Next Sink
}

func (s PanicSink) Report(r Report) {
	if r.Kind.Fatal() {
		panic(r.String())
	}
	if s.Next != nil {
		s.Next.Report(r)
	}
}

// Collector keeps every report in memory.
type Collector struct {
	mu      sync.Mutex
	reports []Report
}

func (c *Collector) Report(r Report) {
	c.mu.Lock()
	c.reports = append(c.reports, r)
	c.mu.Unlock()
}

// Reports returns a copy of the collected reports.
func (c *Collector) Reports() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Report, len(c.reports))
	copy(out, c.reports)
	return out
}

// Count returns how many reports of the given kind were collected.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.reports {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops all collected reports.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.reports = nil
	c.mu.Unlock()
}
