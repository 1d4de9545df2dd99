package bitmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memwatch/internal/bitmap"
)

func TestNew(t *testing.T) {
	m, ok := bitmap.New(20)
	require.True(t, ok)
	require.Equal(t, 20, m.Len())
	require.Equal(t, 3, m.Bytes())
	require.Zero(t, m.Count(), "fresh bitmaps should be clear")

	_, ok = bitmap.New(0)
	require.False(t, ok, "zero-length bitmaps are rejected")
	_, ok = bitmap.New(-4)
	require.False(t, ok, "negative lengths are rejected")
}

func TestSetClearTest(t *testing.T) {
	m, ok := bitmap.New(130)
	require.True(t, ok)

	for _, i := range []int{0, 7, 63, 64, 129} {
		m.Set(i)
		require.True(t, m.Test(i), "bit %d should be set", i)
	}
	require.Equal(t, 5, m.Count())

	m.Clear(63)
	require.False(t, m.Test(63))
	require.Equal(t, 4, m.Count())

	// Out-of-range indices never grow the set.
	m.Set(130)
	m.Set(-1)
	require.False(t, m.Test(130))
	require.False(t, m.Test(-1))
	require.Equal(t, 130, m.Len())
	require.Equal(t, 4, m.Count())
}

func TestFindFirstClear(t *testing.T) {
	t.Run("forward from offset", func(t *testing.T) {
		m, _ := bitmap.New(16)
		for i := 0; i < 5; i++ {
			m.Set(i)
		}
		i, ok := m.FindFirstClear(0)
		require.True(t, ok)
		require.Equal(t, 5, i)

		i, ok = m.FindFirstClear(9)
		require.True(t, ok)
		require.Equal(t, 9, i)
	})

	t.Run("wraps once", func(t *testing.T) {
		m, _ := bitmap.New(16)
		for i := 4; i < 16; i++ {
			m.Set(i)
		}
		i, ok := m.FindFirstClear(10)
		require.True(t, ok)
		require.Equal(t, 0, i, "search should wrap to the start")
	})

	t.Run("full", func(t *testing.T) {
		m, _ := bitmap.New(70)
		for i := 0; i < 70; i++ {
			m.Set(i)
		}
		for _, from := range []int{0, 1, 63, 64, 69} {
			_, ok := m.FindFirstClear(from)
			require.False(t, ok, "full bitmap from %d", from)
		}
	})

	t.Run("ignores padding past length", func(t *testing.T) {
		m, _ := bitmap.New(10)
		for i := 0; i < 10; i++ {
			m.Set(i)
		}
		_, ok := m.FindFirstClear(3)
		require.False(t, ok, "bits past Len must never be reported clear")
	})

	t.Run("out of range start", func(t *testing.T) {
		m, _ := bitmap.New(8)
		m.Set(0)
		i, ok := m.FindFirstClear(100)
		require.True(t, ok)
		require.Equal(t, 1, i)
	})
}
