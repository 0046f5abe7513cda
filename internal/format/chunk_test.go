package format

import (
	"errors"
	"testing"
)

func TestChunkHeaderRoundTrip(t *testing.T) {
	area := make([]byte, HeaderAreaSize)
	want := ChunkHeader{ID: 7, PoolSize: 4096, BlockCount: BlocksPerChunk}
	if err := PutChunkHeader(area, want); err != nil {
		t.Fatalf("PutChunkHeader: %v", err)
	}
	got, err := ReadChunkHeader(area)
	if err != nil {
		t.Fatalf("ReadChunkHeader: %v", err)
	}
	if got != want {
		t.Fatalf("header = %+v, want %+v", got, want)
	}
}

func TestChunkHeaderErrors(t *testing.T) {
	if err := PutChunkHeader(make([]byte, 16), ChunkHeader{}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := ReadChunkHeader(make([]byte, HeaderAreaSize)); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestBlockRecords(t *testing.T) {
	area := make([]byte, HeaderAreaSize)
	for i := 0; i < BlocksPerChunk; i++ {
		r := BlockRecord{ObjSize: uint16(16 * (i + 1)), ObjCount: uint16(i), Formats: uint32(i * 3)}
		if err := PutBlockRecord(area, i, r); err != nil {
			t.Fatalf("PutBlockRecord(%d): %v", i, err)
		}
	}
	for i := 0; i < BlocksPerChunk; i++ {
		r, err := ReadBlockRecord(area, i)
		if err != nil {
			t.Fatalf("ReadBlockRecord(%d): %v", i, err)
		}
		if r.ObjSize != uint16(16*(i+1)) || r.ObjCount != uint16(i) || r.Formats != uint32(i*3) {
			t.Fatalf("record %d = %+v", i, r)
		}
	}
	if _, err := ReadBlockRecord(area, BlocksPerChunk); !errors.Is(err, ErrRecordIndex) {
		t.Fatalf("expected ErrRecordIndex, got %v", err)
	}
}

func TestHeaderAreaFitsSixtyFourRecords(t *testing.T) {
	if HeaderAreaSize != 64*RecordSize {
		t.Fatalf("HeaderAreaSize = %d, want %d", HeaderAreaSize, 64*RecordSize)
	}
}
