// Package buf contains bounds and little-endian helpers for laying fixed-size
// records out inside raw byte slots.
package buf

import "encoding/binary"

// U32LE reads a little-endian uint32 from b at off. Returns 0 when b is too short.
func U32LE(b []byte, off int) uint32 {
	if off < 0 || len(b) < off+4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off:])
}

// U64LE reads a little-endian uint64 from b at off. Returns 0 when b is too short.
func U64LE(b []byte, off int) uint64 {
	if off < 0 || len(b) < off+8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b[off:])
}

// PutU32LE writes v at off in little-endian order. Short buffers are left untouched.
func PutU32LE(b []byte, off int, v uint32) {
	if off < 0 || len(b) < off+4 {
		return
	}
	binary.LittleEndian.PutUint32(b[off:], v)
}

// PutU64LE writes v at off in little-endian order. Short buffers are left untouched.
func PutU64LE(b []byte, off int, v uint64) {
	if off < 0 || len(b) < off+8 {
		return
	}
	binary.LittleEndian.PutUint64(b[off:], v)
}
