// Package pool provides a fixed-capacity slot allocator over a single
// pre-allocated arena.
//
// # Overview
//
// A Pool owns one contiguous arena of capacity × slotSize bytes and an
// occupancy bitmap with one bit per slot. Slots are handed out as addresses
// (Addr) inside the arena; the slot index is recovered from an address as
// (addr - Base()) / SlotSize().
//
// # Round-Robin Allocation
//
// Acquire does not restart its search at slot 0. It resumes at a scan cursor
// left behind by the previous successful acquire and wraps to the start once,
// so a long run of occupied slots is walked at most once per full wrap:
//
//	p, err := pool.New("records", 1024, 40)
//	if err != nil {
//	    return err
//	}
//	defer p.Destroy()
//
//	addr, err := p.AcquireZeroed()
//	if errors.Is(err, pool.ErrExhausted) {
//	    // caller decides; the pool has counted the failure
//	}
//	copy(p.Bytes(addr), payload)
//
//	if err := p.Release(addr); err != nil {
//	    // ErrInvalidAddress or ErrDoubleFree, already logged and counted
//	}
//
// WithReclaimReposition moves the cursor back to a freed slot's bitmap byte
// on Release, which favours quick reuse over locality under heavy churn. It
// is off by default.
//
// # Slot Size
//
// Slot sizes are rounded up to Alignment (the machine word size).
//
// # Failure Handling
//
// Nothing here panics. Exhaustion, out-of-range releases and double frees are
// counted in Stats, logged through the configured *slog.Logger and returned as
// errors wrapping the sentinels in errors.go.
//
// # Thread Safety
//
// Pool instances are not thread-safe. Callers must synchronize access
// externally; one mutex per pool is enough.
package pool
