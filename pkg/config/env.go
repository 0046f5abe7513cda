package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joshuapare/tierheap/internal/buf"
)

// Environment variable names read by Env.
const (
	EnvChunkSize = "TIERHEAP_CHUNK_SIZE"
	EnvPoolSize  = "TIERHEAP_POOL_SIZE"
	EnvPoolCount = "TIERHEAP_POOL_COUNT"
)

func envName(p Param) string {
	switch p {
	case ChunkSize:
		return EnvChunkSize
	case PoolSize:
		return EnvPoolSize
	case PoolCount:
		return EnvPoolCount
	}
	return ""
}

// Env reads parameters from the environment and defers to Fallback for
// unset variables. Sizes accept the suffixes K, M and G (powers of 1024).
type Env struct {
	Fallback Source
}

func (e Env) Read(p Param) (int, error) {
	name := envName(p)
	if name == "" {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParam, p)
	}
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		if e.Fallback == nil {
			return Default().Read(p)
		}
		return e.Fallback.Read(p)
	}
	v, err := ParseSize(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// ParseSize parses an integer with an optional K/M/G suffix (also KiB/MiB/GiB).
func ParseSize(s string) (int, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	s = strings.TrimSuffix(strings.TrimSuffix(s, "B"), "I")
	mult := 1
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalid, n)
	}
	size, ok := buf.MulOverflowSafe(n, mult)
	if !ok {
		return 0, fmt.Errorf("%w: size %s overflows", ErrInvalid, s)
	}
	return size, nil
}
