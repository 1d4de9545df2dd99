package trace

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memwatch/internal/testutil"
	"github.com/joshuapare/memwatch/watch"
)

func mustParse(t *testing.T, s string) []Event {
	t.Helper()
	events, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return events
}

func TestApply_LeakScenario(t *testing.T) {
	r := testutil.SetupRegistry(t, watch.Config{})

	res, err := Apply(context.Background(), r, mustParse(t, leakTrace))
	require.NoError(t, err)
	require.Equal(t, Result{Applied: 3}, res)

	rep := r.Report()
	require.Len(t, rep.Records, 1)
	require.Equal(t, uintptr(0x2000), rep.Records[0].Pointer)
}

func TestApply_CountsTolerated(t *testing.T) {
	r := testutil.SetupRegistry(t, watch.Config{MaxTracked: 2})

	events := mustParse(t, `
alloc 0x1 1
alloc 0x2 1
alloc 0x3 1
free 0x9
realloc 0x4 1
`)
	res, err := Apply(context.Background(), r, events)
	require.NoError(t, err)
	require.Equal(t, Result{Applied: 2, Dropped: 2, Untracked: 1}, res)
	require.Equal(t, 5, res.Total())
	require.Equal(t, 2, r.Live())
}

func TestApply_StopsOnOtherErrors(t *testing.T) {
	r, err := watch.New(watch.Config{MaxTracked: 2})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	res, err := Apply(context.Background(), r, mustParse(t, "alloc 0x1 1\n"))
	require.ErrorIs(t, err, watch.ErrNotInitialized)
	require.ErrorContains(t, err, "trace: line 1")
	require.Zero(t, res.Total())
}

type cancelAfter struct {
	n      int
	cancel context.CancelFunc
	calls  int
}

func (c *cancelAfter) note() error {
	c.calls++
	if c.calls == c.n {
		c.cancel()
	}
	return nil
}

func (c *cancelAfter) NotifyAllocate(uintptr, uint64, watch.Site) error   { return c.note() }
func (c *cancelAfter) NotifyReallocate(uintptr, uint64, watch.Site) error { return c.note() }
func (c *cancelAfter) NotifyFree(uintptr, watch.Site) error               { return c.note() }

func TestApply_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := &cancelAfter{n: 2, cancel: cancel}

	res, err := Apply(ctx, n, mustParse(t, "alloc 0x1 1\nalloc 0x2 1\nalloc 0x3 1\n"))
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 2, res.Applied)
	require.Equal(t, 2, n.calls)
}

func TestApply_UnknownOp(t *testing.T) {
	_, err := Apply(context.Background(), &cancelAfter{}, []Event{{Op: 0, Line: 4}})
	require.ErrorContains(t, err, "line 4: unknown op")
}
