package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memwatch/internal/arena"
	"github.com/joshuapare/memwatch/internal/bitmap"
)

func TestNew_BitmapFailureReleasesArena(t *testing.T) {
	released := 0
	backing := func(n int) ([]byte, func() error, error) {
		data, _, err := arena.Heap(n)
		return data, func() error { released++; return nil }, err
	}
	failBitmap := func(o *options) {
		o.newBitmap = func(int) (*bitmap.Bitmap, bool) { return nil, false }
	}

	p, err := New("no-bitmap", 64, 16, WithBacking(backing), failBitmap)
	require.Nil(t, p)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, 1, released, "arena must be released when the bitmap cannot be allocated")
}

func TestNew_ArenaFailureSkipsBitmap(t *testing.T) {
	bitmapCalls := 0
	countBitmap := func(o *options) {
		o.newBitmap = func(n int) (*bitmap.Bitmap, bool) {
			bitmapCalls++
			return bitmap.New(n)
		}
	}
	backing := func(int) ([]byte, func() error, error) { return nil, nil, arena.ErrOutOfMemory }

	_, err := New("no-arena", 64, 16, WithBacking(backing), countBitmap)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Zero(t, bitmapCalls, "no bitmap may be allocated after the arena fails")
}

func TestRawIndexFloors(t *testing.T) {
	p := &Pool{base: 0x1000, slotSize: 8}
	require.Equal(t, int64(-1), p.rawIndex(0x0fff))
	require.Equal(t, int64(0), p.rawIndex(0x1000))
	require.Equal(t, int64(2), p.rawIndex(0x1017))
}
