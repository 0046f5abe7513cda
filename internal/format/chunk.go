package format

// ChunkHeader is the decoded fixed part of a chunk's header area.
type ChunkHeader struct {
	ID         uint32
	PoolSize   uint32
	BlockCount uint32
}

// BlockRecord mirrors a block's geometry inside the chunk header area.
type BlockRecord struct {
	ObjSize  uint16
	ObjCount uint16
	Formats  uint32
}

// PutChunkHeader writes the magic and the fixed header fields into area.
func PutChunkHeader(area []byte, h ChunkHeader) error {
	if len(area) < HeaderAreaSize {
		return ErrTruncated
	}
	PutU32(area, ChunkMagicOffset, ChunkMagic)
	PutU32(area, ChunkIDOffset, h.ID)
	PutU32(area, ChunkPoolSizeOffset, h.PoolSize)
	PutU32(area, ChunkBlockCountOffset, h.BlockCount)
	return nil
}

// ReadChunkHeader decodes the header fields, checking the magic.
func ReadChunkHeader(area []byte) (ChunkHeader, error) {
	if len(area) < HeaderAreaSize {
		return ChunkHeader{}, ErrTruncated
	}
	if ReadU32(area, ChunkMagicOffset) != ChunkMagic {
		return ChunkHeader{}, ErrSignatureMismatch
	}
	return ChunkHeader{
		ID:         ReadU32(area, ChunkIDOffset),
		PoolSize:   ReadU32(area, ChunkPoolSizeOffset),
		BlockCount: ReadU32(area, ChunkBlockCountOffset),
	}, nil
}

func recordOffset(i int) (int, error) {
	if i < 0 || i >= BlocksPerChunk {
		return 0, ErrRecordIndex
	}
	return ChunkRecordsOffset + i*RecordSize, nil
}

// PutBlockRecord writes record i.
func PutBlockRecord(area []byte, i int, r BlockRecord) error {
	off, err := recordOffset(i)
	if err != nil {
		return err
	}
	if len(area) < off+RecordSize {
		return ErrTruncated
	}
	PutU16(area, off+RecordObjSizeOffset, r.ObjSize)
	PutU16(area, off+RecordObjCountOffset, r.ObjCount)
	PutU32(area, off+RecordFormatsOffset, r.Formats)
	return nil
}

// ReadBlockRecord reads record i.
func ReadBlockRecord(area []byte, i int) (BlockRecord, error) {
	off, err := recordOffset(i)
	if err != nil {
		return BlockRecord{}, err
	}
	if len(area) < off+RecordSize {
		return BlockRecord{}, ErrTruncated
	}
	return BlockRecord{
		ObjSize:  ReadU16(area, off+RecordObjSizeOffset),
		ObjCount: ReadU16(area, off+RecordObjCountOffset),
		Formats:  ReadU32(area, off+RecordFormatsOffset),
	}, nil
}
