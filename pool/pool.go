package pool

import (
	"fmt"
	"log/slog"
	"math/bits"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/memwatch/internal/bitmap"
	"github.com/joshuapare/memwatch/internal/buf"
	"github.com/joshuapare/memwatch/internal/logging"
)

// Alignment is the boundary slot sizes are rounded up to (the machine word).
const Alignment = bits.UintSize / 8

// Addr is the address of a slot inside a pool's arena.
type Addr uintptr

// Pool hands out fixed-size slots from a single arena.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Pool struct {
	label    string
	slotSize int
	capacity int

	arena   []byte
	release func() error
	base    Addr

	occupancy *bitmap.Bitmap
	cursor    int // next bit the free-slot search starts from

	reposition bool
	logger     *slog.Logger

	stats Stats
}

// New allocates a pool of capacity slots of at least slotSize bytes each.
//
// The arena and the occupancy bitmap are allocated together: if either
// fails, nothing stays allocated and the error wraps ErrOutOfMemory.
func New(label string, capacity, slotSize int, opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.Or(o.logger)

	if capacity <= 0 || slotSize <= 0 {
		return nil, fmt.Errorf("%w: %s: capacity=%d slot=%d", ErrInvalidSize, label, capacity, slotSize)
	}
	rsize, ok := buf.AlignUp(slotSize, Alignment)
	if !ok {
		return nil, fmt.Errorf("%w: %s: slot size %d overflows", ErrOutOfMemory, label, slotSize)
	}
	total, ok := buf.MulOverflowSafe(capacity, rsize)
	if !ok {
		logger.Warn("pool: out of memory", "label", label, "slots", capacity, "slot_size", rsize)
		return nil, fmt.Errorf("%w: %s: %d slots of %d bytes overflows", ErrOutOfMemory, label, capacity, rsize)
	}

	mem, release, err := o.backing(total)
	if err != nil {
		logger.Warn("pool: out of memory for arena", "label", label, "bytes", total, "err", err)
		return nil, fmt.Errorf("%w: %s: arena of %d bytes: %w", ErrOutOfMemory, label, total, err)
	}
	if len(mem) != total {
		_ = release()
		return nil, fmt.Errorf("%w: %s: backing returned %d of %d bytes", ErrOutOfMemory, label, len(mem), total)
	}

	occ, ok := o.newBitmap(capacity)
	if !ok {
		logger.Warn("pool: out of memory for bitmap", "label", label, "bits", capacity)
		if rerr := release(); rerr != nil {
			logger.Warn("pool: releasing arena", "label", label, "err", rerr)
		}
		return nil, fmt.Errorf("%w: %s: bitmap of %d bits", ErrOutOfMemory, label, capacity)
	}

	p := &Pool{
		label:      label,
		slotSize:   rsize,
		capacity:   capacity,
		arena:      mem,
		release:    release,
		base:       Addr(uintptr(unsafe.Pointer(unsafe.SliceData(mem)))),
		occupancy:  occ,
		reposition: o.reposition,
		logger:     logger,
	}
	p.stats = Stats{
		Label:       label,
		Capacity:    capacity,
		SlotSize:    rsize,
		BitmapBits:  (capacity + 7) &^ 7,
		BitmapBytes: occ.Bytes(),
		ArenaBytes:  total,
	}

	logger.Debug("pool: created",
		"label", label,
		"slots", capacity,
		"slot_size", rsize,
		"arena", humanize.IBytes(uint64(total)),
		"base", fmt.Sprintf("%#x", uintptr(p.base)),
		"reposition", o.reposition,
	)
	return p, nil
}

// Label returns the diagnostic name given to New.
func (p *Pool) Label() string { return p.label }

// Capacity returns the maximum number of slots.
func (p *Pool) Capacity() int { return p.capacity }

// SlotSize returns the aligned size of each slot in bytes.
func (p *Pool) SlotSize() int { return p.slotSize }

// Base returns the arena's first address, or 0 after Destroy.
func (p *Pool) Base() Addr { return p.base }

// Acquire claims a free slot and returns its address.
//
// The search starts at the scan cursor and wraps to slot 0 once. On success
// the cursor moves past the claimed slot. When every slot is taken the
// failure is counted and ErrExhausted returned.
func (p *Pool) Acquire() (Addr, error) {
	if p.destroyed() {
		return 0, fmt.Errorf("%w: %s", ErrDestroyed, p.label)
	}
	i, ok := p.occupancy.FindFirstClear(p.cursor)
	if !ok {
		p.stats.AllocFailures++
		p.logger.Debug("pool: exhausted", "label", p.label, "allocated", p.stats.Allocated, "alloc_fail", p.stats.AllocFailures)
		return 0, fmt.Errorf("%w: %s: %d of %d slots in use", ErrExhausted, p.label, p.stats.Allocated, p.capacity)
	}
	p.cursor = (i + 1) % p.capacity
	p.occupancy.Set(i)

	p.stats.Allocated++
	p.stats.AllocRequests++
	if p.stats.Allocated > p.stats.PeakAllocated {
		p.stats.PeakAllocated = p.stats.Allocated
	}
	return p.addrOf(i), nil
}

// AcquireZeroed is Acquire with the slot's bytes cleared.
func (p *Pool) AcquireZeroed() (Addr, error) {
	addr, err := p.Acquire()
	if err != nil {
		return 0, err
	}
	clear(p.Bytes(addr))
	return addr, nil
}

// Release returns the slot at addr to the pool.
//
// An address outside the arena or off a slot boundary yields
// ErrInvalidAddress; a slot that is already free yields ErrDoubleFree. Both
// are logged and counted as reclaim failures and leave the pool unchanged.
func (p *Pool) Release(addr Addr) error {
	if p.destroyed() {
		return fmt.Errorf("%w: %s", ErrDestroyed, p.label)
	}
	i, ok := p.Index(addr)
	if !ok {
		p.stats.ReclaimFailures++
		bit := p.rawIndex(addr)
		p.logger.Warn("pool: release out of range",
			"label", p.label,
			"addr", fmt.Sprintf("%#x", uintptr(addr)),
			"bit", bit,
			"range", fmt.Sprintf("0-%d", p.capacity-1),
		)
		return fmt.Errorf("%w: %s(%#x): bit %d out of bitmap range 0-%d",
			ErrInvalidAddress, p.label, uintptr(addr), bit, p.capacity-1)
	}
	if !p.occupancy.Test(i) {
		p.stats.ReclaimFailures++
		p.logger.Warn("pool: region is already free", "label", p.label, "bit", i)
		return fmt.Errorf("%w: %s(%d)", ErrDoubleFree, p.label, i)
	}

	p.occupancy.Clear(i)
	if p.reposition {
		p.cursor = i &^ 7
	}
	p.stats.Allocated--
	p.stats.ReclaimRequests++
	return nil
}

// Index returns the slot index of addr. It reports false for addresses
// outside the arena or not on a slot boundary.
func (p *Pool) Index(addr Addr) (int, bool) {
	if p.destroyed() || addr < p.base {
		return -1, false
	}
	off := uintptr(addr - p.base)
	if off >= uintptr(len(p.arena)) || off%uintptr(p.slotSize) != 0 {
		return -1, false
	}
	return int(off / uintptr(p.slotSize)), true
}

// Contains reports whether addr is the start of one of the pool's slots.
func (p *Pool) Contains(addr Addr) bool {
	_, ok := p.Index(addr)
	return ok
}

// SlotAddr returns the address of slot i.
func (p *Pool) SlotAddr(i int) (Addr, bool) {
	if p.destroyed() || i < 0 || i >= p.capacity {
		return 0, false
	}
	return p.addrOf(i), true
}

// Slot returns the bytes of slot i, or nil when i is out of range. The
// slice aliases the arena and is capped at the slot boundary.
func (p *Pool) Slot(i int) []byte {
	if p.destroyed() || i < 0 || i >= p.capacity {
		return nil
	}
	b, _ := buf.Slice(p.arena, i*p.slotSize, p.slotSize)
	return b
}

// Bytes returns the bytes of the slot at addr, or nil for an invalid address.
func (p *Pool) Bytes(addr Addr) []byte {
	i, ok := p.Index(addr)
	if !ok {
		return nil
	}
	return p.Slot(i)
}

// Allocated reports whether slot i is currently handed out.
func (p *Pool) Allocated(i int) bool {
	return !p.destroyed() && p.occupancy.Test(i)
}

// Destroy releases the arena and bitmap. Every later Acquire or Release
// returns ErrDestroyed; Stats keeps reporting the final counters.
func (p *Pool) Destroy() error {
	if p.destroyed() {
		return fmt.Errorf("%w: %s", ErrDestroyed, p.label)
	}
	release := p.release
	p.arena = nil
	p.release = nil
	p.occupancy = nil
	p.base = 0
	p.cursor = 0

	if err := release(); err != nil {
		p.logger.Warn("pool: releasing arena", "label", p.label, "err", err)
		return fmt.Errorf("pool: destroy %s: %w", p.label, err)
	}
	p.logger.Debug("pool: destroyed", "label", p.label)
	return nil
}

// Stats returns a snapshot of the pool's geometry and counters.
func (p *Pool) Stats() Stats {
	s := p.stats
	s.ScanCursor = p.cursor
	return s
}

func (p *Pool) destroyed() bool { return p.occupancy == nil }

func (p *Pool) addrOf(i int) Addr {
	return p.base + Addr(i*p.slotSize)
}

// rawIndex is the floor of (addr - base) / slotSize, for diagnostics only.
func (p *Pool) rawIndex(addr Addr) int64 {
	off := int64(addr) - int64(p.base)
	size := int64(p.slotSize)
	q := off / size
	if off%size != 0 && off < 0 {
		q--
	}
	return q
}
