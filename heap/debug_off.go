//go:build !tierheap_debug

package heap

// debugChecks is enabled by building with -tags tierheap_debug.
const debugChecks = false
