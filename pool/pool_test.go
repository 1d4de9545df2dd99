package pool_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memwatch/internal/arena"
	"github.com/joshuapare/memwatch/internal/testutil"
	"github.com/joshuapare/memwatch/pool"
)

func newPool(t testing.TB, capacity, slotSize int, opts ...pool.Option) *pool.Pool {
	t.Helper()
	p, err := pool.New("test", capacity, slotSize, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Destroy() })
	return p
}

func TestNew_Geometry(t *testing.T) {
	p := newPool(t, 100, 68)

	require.Equal(t, "test", p.Label())
	require.Equal(t, 100, p.Capacity())
	require.GreaterOrEqual(t, p.SlotSize(), 68)
	require.Less(t, p.SlotSize(), 68+pool.Alignment)
	require.Zero(t, p.SlotSize()%pool.Alignment, "slot size must be word aligned")
	require.NotZero(t, p.Base())

	st := p.Stats()
	require.Equal(t, 104, st.BitmapBits, "bitmap bits round up to a whole byte")
	require.Equal(t, 13, st.BitmapBytes)
	require.Equal(t, 100*p.SlotSize(), st.ArenaBytes)
	require.Zero(t, st.Allocated)
	require.Zero(t, st.AllocRequests)
	require.Zero(t, st.ReclaimRequests)
	require.Zero(t, st.AllocFailures)
	require.Zero(t, st.ReclaimFailures)
	require.Zero(t, st.PeakAllocated)
	require.Zero(t, st.ScanCursor)
}

func TestNew_InvalidSize(t *testing.T) {
	for _, tc := range []struct{ capacity, slot int }{{0, 8}, {8, 0}, {-1, 8}, {8, -8}} {
		_, err := pool.New("bad", tc.capacity, tc.slot)
		require.ErrorIs(t, err, pool.ErrInvalidSize, "capacity=%d slot=%d", tc.capacity, tc.slot)
	}
}

func TestNew_OverflowIsOutOfMemory(t *testing.T) {
	backing := &testutil.Backing{}
	_, err := pool.New("huge", math.MaxInt/2, 64, pool.WithBacking(backing.Func()))
	require.ErrorIs(t, err, pool.ErrOutOfMemory)
	require.Zero(t, backing.Requests, "the arena must not be requested when the size overflows")
}

func TestNew_ArenaFailure(t *testing.T) {
	backing := &testutil.Backing{Err: arena.ErrOutOfMemory}
	p, err := pool.New("starved", 16, 8, pool.WithBacking(backing.Func()))
	require.Nil(t, p)
	require.ErrorIs(t, err, pool.ErrOutOfMemory)
	require.ErrorIs(t, err, arena.ErrOutOfMemory)
}

func TestNew_ShortArenaIsReleased(t *testing.T) {
	backing := &testutil.Backing{Short: 1}
	_, err := pool.New("short", 16, 8, pool.WithBacking(backing.Func()))
	require.ErrorIs(t, err, pool.ErrOutOfMemory)
	require.Equal(t, 1, backing.Releases)
}

func TestAcquire_ExactCapacity(t *testing.T) {
	for _, capacity := range []int{1, 7, 8, 9, 64, 100} {
		for _, slot := range []int{1, 8, 68} {
			p := newPool(t, capacity, slot)
			end := p.Base() + pool.Addr(capacity*p.SlotSize())
			seen := make(map[pool.Addr]bool, capacity)

			for i := 0; i < capacity; i++ {
				addr, err := p.Acquire()
				require.NoError(t, err, "capacity=%d slot=%d acquire %d", capacity, slot, i)
				require.False(t, seen[addr], "address %#x handed out twice", addr)
				require.True(t, addr >= p.Base() && addr < end, "address %#x outside the arena", addr)
				require.Zero(t, int(addr-p.Base())%p.SlotSize(), "address must be slot aligned")
				seen[addr] = true
			}

			_, err := p.Acquire()
			require.ErrorIs(t, err, pool.ErrExhausted)

			st := p.Stats()
			require.Equal(t, capacity, st.Allocated)
			require.Equal(t, capacity, st.AllocRequests)
			require.Equal(t, capacity, st.PeakAllocated)
			require.Equal(t, 1, st.AllocFailures)
		}
	}
}

func TestAcquire_RoundRobin(t *testing.T) {
	p := newPool(t, 8, 16)

	first, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(first))

	second, err := p.Acquire()
	require.NoError(t, err)
	require.NotEqual(t, first, second, "search resumes after the last slot instead of restarting at 0")
	require.NoError(t, p.Release(second))

	// A single slot churned repeatedly walks the whole arena in order.
	for n := 0; n < 40; n++ {
		addr, err := p.Acquire()
		require.NoError(t, err)
		idx, ok := p.Index(addr)
		require.True(t, ok)
		require.Equal(t, (n+2)%8, idx)
		require.NoError(t, p.Release(addr))
	}

	st := p.Stats()
	require.Zero(t, st.Allocated)
	require.Equal(t, 1, st.PeakAllocated)
	require.Equal(t, 42, st.AllocRequests)
	require.Equal(t, 42, st.ReclaimRequests)
	require.Zero(t, st.AllocFailures)
}

func TestAcquire_RefillAfterRelease(t *testing.T) {
	const capacity = 33
	p := newPool(t, capacity, 24)

	fill := func() []pool.Addr {
		var addrs []pool.Addr
		for {
			addr, err := p.Acquire()
			if errors.Is(err, pool.ErrExhausted) {
				return addrs
			}
			require.NoError(t, err)
			addrs = append(addrs, addr)
		}
	}

	addrs := fill()
	require.Len(t, addrs, capacity)
	for _, a := range addrs {
		require.NoError(t, p.Release(a))
	}
	require.Len(t, fill(), capacity, "a full refill must succeed the same number of times")
	require.Equal(t, 2, p.Stats().AllocFailures)
}

func TestRelease_RoundTripAndDoubleFree(t *testing.T) {
	p := newPool(t, 4, 8)

	addr, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Release(addr))

	err = p.Release(addr)
	require.ErrorIs(t, err, pool.ErrDoubleFree)

	st := p.Stats()
	require.Zero(t, st.Allocated)
	require.Equal(t, 1, st.ReclaimRequests)
	require.Equal(t, 1, st.ReclaimFailures)
}

func TestRelease_OutOfRange(t *testing.T) {
	p := newPool(t, 10, 32)
	_, err := p.Acquire()
	require.NoError(t, err)

	bad := []pool.Addr{
		p.Base() - 1,
		p.Base() + pool.Addr(10*p.SlotSize()),
		p.Base() + 1, // inside slot 0 but not on its boundary
	}
	for _, addr := range bad {
		err := p.Release(addr)
		require.ErrorIs(t, err, pool.ErrInvalidAddress, "addr %#x", addr)
	}

	st := p.Stats()
	require.Equal(t, 1, st.Allocated, "invalid releases must not change the allocation count")
	require.Equal(t, 3, st.ReclaimFailures)
	require.Zero(t, st.ReclaimRequests)
}

func TestAcquireZeroed(t *testing.T) {
	p := newPool(t, 1, 16)

	addr, err := p.Acquire()
	require.NoError(t, err)
	b := p.Bytes(addr)
	require.Len(t, b, 16)
	for i := range b {
		b[i] = 0xFF
	}
	require.NoError(t, p.Release(addr))

	again, err := p.AcquireZeroed()
	require.NoError(t, err)
	require.Equal(t, addr, again, "single-slot pool must hand back the same slot")
	require.Equal(t, make([]byte, 16), p.Bytes(again))

	_, err = p.AcquireZeroed()
	require.ErrorIs(t, err, pool.ErrExhausted)
}

func TestReclaimReposition(t *testing.T) {
	run := func(reposition bool) int {
		p := newPool(t, 32, 8, pool.WithReclaimReposition(reposition))
		addrs := make([]pool.Addr, 20)
		for i := range addrs {
			a, err := p.Acquire()
			require.NoError(t, err)
			addrs[i] = a
		}
		require.NoError(t, p.Release(addrs[11]))
		if reposition {
			require.Equal(t, 8, p.Stats().ScanCursor, "cursor moves to the freed bit's byte")
		}

		next, err := p.Acquire()
		require.NoError(t, err)
		idx, ok := p.Index(next)
		require.True(t, ok)
		return idx
	}

	require.Equal(t, 20, run(false), "default keeps scanning forward")
	require.Equal(t, 11, run(true), "reposition reuses the freed slot")
}

func TestSlotAccessors(t *testing.T) {
	p := newPool(t, 4, 12)

	addr, ok := p.SlotAddr(2)
	require.True(t, ok)
	idx, ok := p.Index(addr)
	require.True(t, ok)
	require.Equal(t, 2, idx)
	require.True(t, p.Contains(addr))
	require.False(t, p.Allocated(2))

	_, ok = p.SlotAddr(4)
	require.False(t, ok)
	require.Nil(t, p.Slot(-1))
	require.Nil(t, p.Bytes(p.Base()+3))

	s := p.Slot(3)
	require.Len(t, s, p.SlotSize())
	require.Equal(t, p.SlotSize(), cap(s), "slot views must not reach into the next slot")
}

func TestDestroy(t *testing.T) {
	backing := &testutil.Backing{}
	p, err := pool.New("short-lived", 4, 8, pool.WithBacking(backing.Func()))
	require.NoError(t, err)

	addr, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Destroy())
	require.Equal(t, 1, backing.Releases)

	_, err = p.Acquire()
	require.ErrorIs(t, err, pool.ErrDestroyed)
	require.ErrorIs(t, p.Release(addr), pool.ErrDestroyed)
	require.ErrorIs(t, p.Destroy(), pool.ErrDestroyed)
	require.Equal(t, 1, backing.Releases)

	st := p.Stats()
	require.Equal(t, 1, st.Allocated, "final counters stay readable")
	require.Equal(t, 1, st.AllocRequests)
}

func TestRandomChurnKeepsCountersConsistent(t *testing.T) {
	const capacity = 50
	p := newPool(t, capacity, 40)
	rng := rand.New(rand.NewSource(42)) // Fixed seed for reproducibility
	live := make(map[pool.Addr]struct{})
	peak := 0

	for step := 0; step < 5000; step++ {
		if rng.Intn(3) != 0 || len(live) == 0 {
			addr, err := p.Acquire()
			if len(live) == capacity {
				require.ErrorIs(t, err, pool.ErrExhausted)
			} else {
				require.NoError(t, err, "step %d", step)
				live[addr] = struct{}{}
			}
		} else {
			for addr := range live {
				require.NoError(t, p.Release(addr), "step %d", step)
				delete(live, addr)
				break
			}
		}
		peak = max(peak, len(live))

		st := p.Stats()
		require.Equal(t, len(live), st.Allocated, "step %d", step)
		require.GreaterOrEqual(t, st.ScanCursor, 0)
		require.Less(t, st.ScanCursor, capacity)
	}

	used := 0
	for i := 0; i < capacity; i++ {
		if p.Allocated(i) {
			used++
		}
	}
	require.Equal(t, len(live), used, "allocated count must equal the bitmap population")
	require.Equal(t, peak, p.Stats().PeakAllocated)
}
