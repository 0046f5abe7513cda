// Package config supplies the three allocator parameters: chunk size, per-block
// pool size and pool count. Values can come from code, the environment or a
// YAML file, and are always validated before a heap is built from them.
package config

import (
	"errors"
	"fmt"

	"github.com/joshuapare/tierheap/internal/format"
)

// Param names one configuration value.
type Param uint8

const (
	ChunkSize Param = iota // Bytes per chunk (power of two, page multiple)
	PoolSize               // Bytes per block pool
	PoolCount              // Number of size classes plus the unformatted class and the reserved class 1
)

func (p Param) String() string {
	switch p {
	case ChunkSize:
		return "chunk_size"
	case PoolSize:
		return "pool_size"
	case PoolCount:
		return "pool_count"
	default:
		return fmt.Sprintf("param(%d)", uint8(p))
	}
}

// Params lists every parameter in read order.
var Params = []Param{ChunkSize, PoolSize, PoolCount}

// Limits.
const (
	DefaultChunkSize = 2 << 20
	DefaultPoolSize  = 32 << 10
	DefaultPoolCount = 10

	MinPoolSize  = format.HeaderAreaSize
	MaxPoolSize  = format.MaxPoolSize
	MinPoolCount = 3
	MaxPoolCount = 64
)

var (
	ErrUnknownParam = errors.New("config: unknown parameter")
	ErrInvalid      = errors.New("config: invalid value")
)

// Source returns the integer value of a parameter.
type Source interface {
	Read(p Param) (int, error)
}

// Config is a fully resolved configuration. It is itself a Source.
type Config struct {
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	PoolSize  int `yaml:"pool_size" json:"pool_size"`
	PoolCount int `yaml:"pool_count" json:"pool_count"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		PoolSize:  DefaultPoolSize,
		PoolCount: DefaultPoolCount,
	}
}

func (c Config) Read(p Param) (int, error) {
	switch p {
	case ChunkSize:
		return c.ChunkSize, nil
	case PoolSize:
		return c.PoolSize, nil
	case PoolCount:
		return c.PoolCount, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownParam, p)
	}
}

// FromSource reads every parameter from src.
func FromSource(src Source) (Config, error) {
	var c Config
	for _, p := range Params {
		v, err := src.Read(p)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", p, err)
		}
		switch p {
		case ChunkSize:
			c.ChunkSize = v
		case PoolSize:
			c.PoolSize = v
		case PoolCount:
			c.PoolCount = v
		}
	}
	return c, nil
}

// BlocksPerChunk reports how many pools of the chunk back blocks.
func (c Config) BlocksPerChunk() int { return format.BlocksPerChunk }

// Validate checks the configuration against the allocator's layout rules.
// pageSize is the platform page size in bytes.
func (c Config) Validate(pageSize int) error {
	if c.PoolSize < MinPoolSize || c.PoolSize > MaxPoolSize {
		return fmt.Errorf("%w: pool_size %d outside [%d, %d]", ErrInvalid, c.PoolSize, MinPoolSize, MaxPoolSize)
	}
	if c.PoolSize%format.ObjectAlignment != 0 {
		return fmt.Errorf("%w: pool_size %d not a multiple of %d", ErrInvalid, c.PoolSize, format.ObjectAlignment)
	}
	if c.ChunkSize <= 0 || !format.IsPow2(c.ChunkSize) {
		return fmt.Errorf("%w: chunk_size %d not a power of two", ErrInvalid, c.ChunkSize)
	}
	if pageSize > 0 && c.ChunkSize%pageSize != 0 {
		return fmt.Errorf("%w: chunk_size %d not a multiple of page size %d", ErrInvalid, c.ChunkSize, pageSize)
	}
	if c.ChunkSize < format.PoolsPerChunk*c.PoolSize {
		return fmt.Errorf("%w: chunk_size %d smaller than %d pools of %d bytes",
			ErrInvalid, c.ChunkSize, format.PoolsPerChunk, c.PoolSize)
	}
	if c.PoolCount < MinPoolCount || c.PoolCount > MaxPoolCount {
		return fmt.Errorf("%w: pool_count %d outside [%d, %d]", ErrInvalid, c.PoolCount, MinPoolCount, MaxPoolCount)
	}
	return nil
}
