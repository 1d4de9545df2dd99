package pool

import (
	"log/slog"

	"github.com/joshuapare/memwatch/internal/arena"
	"github.com/joshuapare/memwatch/internal/bitmap"
)

// Option configures a Pool.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	reposition bool
	backing    arena.Func

	// newBitmap is swapped out by tests to simulate bitmap allocation failure.
	newBitmap func(n int) (*bitmap.Bitmap, bool)
}

func defaultOptions() options {
	return options{
		backing:   arena.Map,
		newBitmap: bitmap.New,
	}
}

// WithLogger sets the logger for diagnostics. Defaults to logging.L.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReclaimReposition makes Release move the scan cursor to the freed
// slot's bitmap byte so the next Acquire finds it quickly.
func WithReclaimReposition(on bool) Option {
	return func(o *options) { o.reposition = on }
}

// WithBacking sets the function that supplies the arena. Defaults to
// arena.Map; arena.Heap keeps the arena on the Go heap.
func WithBacking(fn arena.Func) Option {
	return func(o *options) {
		if fn != nil {
			o.backing = fn
		}
	}
}
