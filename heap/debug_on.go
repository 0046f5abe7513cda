//go:build tierheap_debug

package heap

// debugChecks enables expensive validation: pool poisoning on format,
// double-free walks, conservation checks after slides and chunk header
// cross-checks on free. Failures are also delivered to Options.Sink.
const debugChecks = true
