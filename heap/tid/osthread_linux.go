//go:build linux

package tid

import "golang.org/x/sys/unix"

// OSThreads identifies owners by kernel thread id. The caller must pin its
// goroutine with runtime.LockOSThread for as long as it holds the ID, or the
// identity will not follow the goroutine. Release is a no-op since the kernel
// recycles thread ids itself.
type OSThreads struct{}

func (OSThreads) Acquire() (ID, error) {
	return ID(unix.Gettid()), nil
}

func (OSThreads) Release(ID) {}
