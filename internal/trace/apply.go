package trace

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuapare/memwatch/watch"
)

// Notifier receives replayed events. *watch.Registry satisfies it.
type Notifier interface {
	NotifyAllocate(ptr uintptr, size uint64, site watch.Site) error
	NotifyReallocate(ptr uintptr, size uint64, site watch.Site) error
	NotifyFree(ptr uintptr, site watch.Site) error
}

// Result counts replay outcomes.
type Result struct {
	Applied   int `json:"applied"`
	Dropped   int `json:"dropped"`   // allocations lost to an exhausted record pool
	Untracked int `json:"untracked"` // frees of pointers with no live record
}

// Total returns the number of events processed.
func (r Result) Total() int { return r.Applied + r.Dropped + r.Untracked }

// Apply feeds events to n in order. Exhaustion and untracked frees are
// counted and replay continues; any other error, or ctx being done, stops
// the replay and is returned with the counts so far.
func Apply(ctx context.Context, n Notifier, events []Event) (Result, error) {
	var res Result
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var err error
		switch ev.Op {
		case OpAlloc:
			err = n.NotifyAllocate(ev.Ptr, ev.Size, ev.Site)
		case OpRealloc:
			err = n.NotifyReallocate(ev.Ptr, ev.Size, ev.Site)
		case OpFree:
			err = n.NotifyFree(ev.Ptr, ev.Site)
		default:
			return res, fmt.Errorf("trace: line %d: unknown op %d", ev.Line, ev.Op)
		}

		switch {
		case err == nil:
			res.Applied++
		case errors.Is(err, watch.ErrPoolExhausted):
			res.Dropped++
		case errors.Is(err, watch.ErrUntrackedFree):
			res.Untracked++
		default:
			return res, fmt.Errorf("trace: line %d: %w", ev.Line, err)
		}
	}
	return res, nil
}
