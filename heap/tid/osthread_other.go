//go:build !linux

package tid

// OSThreads is only available on linux.
type OSThreads struct{}

func (OSThreads) Acquire() (ID, error) { return None, ErrUnsupported }

func (OSThreads) Release(ID) {}
