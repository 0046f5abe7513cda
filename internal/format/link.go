package format

import "unsafe"

// ReadLink returns the free-list link stored in the object at base+off.
//
// The link is a native-endian uint16 written into the first two bytes of the
// free object. Callers guarantee base+off is a free object of the block
// whose pool starts at base.
func ReadLink(base unsafe.Pointer, off uint32) uint16 {
	return *(*uint16)(unsafe.Add(base, off))
}

// WriteLink stores next as the free-list link of the object at base+off.
func WriteLink(base unsafe.Pointer, off uint32, next uint16) {
	*(*uint16)(unsafe.Add(base, off)) = next
}

// BuildFreeList threads a free list through count objects of size osz
// starting at base. Object i links to object i+1; the last is tagged
// LinkEnd. It returns the offset of the first object (always 0).
func BuildFreeList(base unsafe.Pointer, osz, count int) uint32 {
	for i := 0; i < count-1; i++ {
		WriteLink(base, uint32(i*osz), uint16((i+1)*osz))
	}
	WriteLink(base, uint32((count-1)*osz), LinkEnd)
	return 0
}

// WalkFreeList counts the objects reachable from head, stopping after limit
// steps so a corrupted list cannot loop forever. head == LinkEnd means the
// list is empty. The second return is false if the walk hit the limit.
func WalkFreeList(base unsafe.Pointer, head uint32, limit int) (int, bool) {
	n := 0
	for off := head; off != LinkEnd; off = uint32(ReadLink(base, off)) {
		if n == limit {
			return n, false
		}
		n++
	}
	return n, true
}
