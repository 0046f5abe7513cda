// Package format houses the low-level memory layout shared by the allocator:
// the in-object free-list link, the chunk header area and its per-block
// records, and the alignment helpers used when carving chunks into pools.
//
// Nothing in here synchronizes. Callers own the memory they pass in.
package format

const (
	// LinkSize is the width of the free-list link stored in the first bytes of
	// every free object. It is a byte offset from the owning block's base.
	LinkSize = 2

	// LinkEnd terminates a free list. An object can never start at this
	// offset because pools are capped at MaxPoolSize and objects are at least
	// MinObjectSize bytes.
	LinkEnd = 0xFFFF

	// MaxPoolSize is the largest per-block pool the 16-bit link can address.
	MaxPoolSize = 0xFFFF

	// MinObjectSize is the smallest object a block is ever formatted to.
	MinObjectSize = 16

	// ObjectAlignment is the alignment of every object size class.
	ObjectAlignment = 8
	// ObjectAlignmentMask is ObjectAlignment - 1.
	ObjectAlignmentMask = ObjectAlignment - 1

	// BlocksPerChunk is the number of blocks carved out of every chunk. The
	// first pool of a chunk is the header area, so a chunk spans
	// BlocksPerChunk+1 pools.
	BlocksPerChunk = 63

	// PoolsPerChunk is BlocksPerChunk plus the header pool.
	PoolsPerChunk = BlocksPerChunk + 1
)

// Chunk header area layout (little-endian), at the start of pool 0:
//
//	0x00  magic        u32  'T' 'I' 'E' 'R'
//	0x04  chunk id     u32
//	0x08  pool size    u32
//	0x0C  block count  u32
//	0x20  block record [BlocksPerChunk], RecordSize bytes each
//
// A block record is:
//
//	0x00  object size   u16
//	0x02  object count  u16
//	0x04  format count  u32
const (
	ChunkMagic = 0x52454954 // "TIER"

	ChunkMagicOffset      = 0x00
	ChunkIDOffset         = 0x04
	ChunkPoolSizeOffset   = 0x08
	ChunkBlockCountOffset = 0x0C

	// ChunkRecordsOffset is where the block records begin.
	ChunkRecordsOffset = 0x20

	// RecordSize is the size of one block record.
	RecordSize = 0x20

	RecordObjSizeOffset  = 0x00
	RecordObjCountOffset = 0x02
	RecordFormatsOffset  = 0x04

	// HeaderAreaSize is the space needed for the header plus all records,
	// i.e. room for 64 records. Pools smaller than this cannot host a chunk
	// header.
	HeaderAreaSize = ChunkRecordsOffset + BlocksPerChunk*RecordSize
)
