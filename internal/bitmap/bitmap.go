// Package bitmap provides the occupancy bitmap used by slot pools: a
// fixed-length bit vector with a free-bit search that resumes at an offset
// and wraps to the start once.
package bitmap

import "github.com/bits-and-blooms/bitset"

// Bitmap is a fixed-length bit vector. Indices outside [0, Len()) are ignored
// by the mutators and read as clear.
//
// NOT thread-safe.
type Bitmap struct {
	bits *bitset.BitSet
	n    int
}

// New returns a bitmap of n clear bits. It reports false when n is not
// positive or the backing words could not be allocated.
func New(n int) (*Bitmap, bool) {
	if n <= 0 {
		return nil, false
	}
	// bitset.New recovers from a failed make and hands back an empty set.
	b := bitset.New(uint(n))
	if b.Len() != uint(n) {
		return nil, false
	}
	return &Bitmap{bits: b, n: n}, true
}

// Len returns the number of addressable bits.
func (m *Bitmap) Len() int { return m.n }

// Bytes returns the number of bytes needed to hold Len bits.
func (m *Bitmap) Bytes() int { return (m.n + 7) >> 3 }

// Set marks bit i.
func (m *Bitmap) Set(i int) {
	if m.inRange(i) {
		m.bits.Set(uint(i))
	}
}

// Clear unmarks bit i.
func (m *Bitmap) Clear(i int) {
	if m.inRange(i) {
		m.bits.Clear(uint(i))
	}
}

// Test reports whether bit i is set.
func (m *Bitmap) Test(i int) bool {
	return m.inRange(i) && m.bits.Test(uint(i))
}

// Count returns the number of set bits.
func (m *Bitmap) Count() int { return int(m.bits.Count()) }

// FindFirstClear returns the first clear bit at or after from. When none is
// found before the end, the search wraps to bit 0 and stops short of from.
// An out-of-range from starts the search at 0.
func (m *Bitmap) FindFirstClear(from int) (int, bool) {
	if !m.inRange(from) {
		from = 0
	}
	if i, ok := m.bits.NextClear(uint(from)); ok {
		return int(i), true
	}
	if from == 0 {
		return -1, false
	}
	if i, ok := m.bits.NextClear(0); ok && int(i) < from {
		return int(i), true
	}
	return -1, false
}

func (m *Bitmap) inRange(i int) bool { return i >= 0 && i < m.n }
