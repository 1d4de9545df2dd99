package watch

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/joshuapare/memwatch/internal/buf"
)

// Kind says which notification created a record.
type Kind uint8

const (
	KindAllocate   Kind = 1
	KindReallocate Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindAllocate:
		return "alloc"
	case KindReallocate:
		return "realloc"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Record describes one live allocation.
type Record struct {
	Pointer uintptr
	Size    uint64
	Kind    Kind
	Site    Site
	Bucket  int
}

// MarshalJSON renders the pointer in hex.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pointer string `json:"pointer"`
		Size    uint64 `json:"size"`
		Kind    Kind   `json:"kind"`
		Site    string `json:"site"`
		Bucket  int    `json:"bucket"`
	}{
		Pointer: fmt.Sprintf("%#x", r.Pointer),
		Size:    r.Size,
		Kind:    r.Kind,
		Site:    r.Site.String(),
		Bucket:  r.Bucket,
	})
}

// Records are stored inside pool slots in a fixed little-endian layout.
// Chains link slots by index, so no Go pointers live in arena memory.
const (
	recPointer = 0  // u64 tracked pointer
	recSize    = 8  // u64 reported size
	recNext    = 16 // u32 next slot in bucket chain
	recPrev    = 20 // u32 previous slot in bucket chain
	recSite    = 24 // u32 interned file name
	recLine    = 28 // u32 line number
	recKind    = 32 // u8

	recordSize = 33
)

// noSlot terminates a bucket chain.
const noSlot = math.MaxUint32

// slot is a view of one record inside the pool arena.
type slot []byte

func (s slot) pointer() uint64 { return buf.U64LE(s, recPointer) }
func (s slot) size() uint64    { return buf.U64LE(s, recSize) }
func (s slot) next() uint32    { return buf.U32LE(s, recNext) }
func (s slot) prev() uint32    { return buf.U32LE(s, recPrev) }
func (s slot) site() uint32    { return buf.U32LE(s, recSite) }
func (s slot) line() uint32    { return buf.U32LE(s, recLine) }
func (s slot) kind() Kind      { return Kind(s[recKind]) }

func (s slot) setNext(i uint32) { buf.PutU32LE(s, recNext, i) }
func (s slot) setPrev(i uint32) { buf.PutU32LE(s, recPrev, i) }

func (s slot) fill(ptr uintptr, size uint64, kind Kind, siteID uint32, line int) {
	buf.PutU64LE(s, recPointer, uint64(ptr))
	buf.PutU64LE(s, recSize, size)
	buf.PutU32LE(s, recSite, siteID)
	buf.PutU32LE(s, recLine, uint32(max(line, 0)))
	s[recKind] = byte(kind)
}
