package testutil

import "github.com/joshuapare/memwatch/internal/arena"

// Backing is an arena.Func double that counts requests and releases.
type Backing struct {
	Err   error // returned instead of memory when set
	Short int   // bytes withheld from each arena

	Requests int
	Releases int
}

// Func returns the allocation function to pass to pool.WithBacking.
func (b *Backing) Func() arena.Func {
	return func(n int) ([]byte, func() error, error) {
		b.Requests++
		if b.Err != nil {
			return nil, nil, b.Err
		}
		return make([]byte, max(n-b.Short, 0)), func() error {
			b.Releases++
			return nil
		}, nil
	}
}
