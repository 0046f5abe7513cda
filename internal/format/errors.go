package format

import "errors"

var (
	// ErrSignatureMismatch indicates a chunk header had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrRecordIndex indicates a block record index outside the chunk.
	ErrRecordIndex = errors.New("format: block record index out of range")
)
