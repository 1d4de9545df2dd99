package watch

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/cespare/xxhash/v2"

	"github.com/joshuapare/memwatch/internal/logging"
	"github.com/joshuapare/memwatch/pool"
)

const (
	// DefaultMaxTracked is the record pool capacity used when Config leaves it zero.
	DefaultMaxTracked = 20000

	// DefaultBuckets is the hash bucket count used when Config leaves it zero.
	DefaultBuckets = 1024

	// PoolLabel names the record pool in logs and reports.
	PoolLabel = "watchdog_mem"
)

// Config sizes a Registry.
type Config struct {
	// MaxTracked bounds the number of live allocations that can be recorded.
	// Events beyond it are dropped and counted as alloc_fail.
	MaxTracked int `yaml:"max_tracked" json:"max_tracked"`

	// Buckets is the number of hash chains.
	Buckets int `yaml:"buckets" json:"buckets"`

	// ReclaimReposition enables pool.WithReclaimReposition on the record pool.
	ReclaimReposition bool `yaml:"reclaim_reposition" json:"reclaim_reposition"`
}

func (c Config) withDefaults() Config {
	if c.MaxTracked == 0 {
		c.MaxTracked = DefaultMaxTracked
	}
	if c.Buckets == 0 {
		c.Buckets = DefaultBuckets
	}
	return c
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for diagnostics. Defaults to logging.L.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithPoolOptions passes extra options to the record pool.
func WithPoolOptions(opts ...pool.Option) Option {
	return func(r *Registry) { r.poolOpts = append(r.poolOpts, opts...) }
}

// Registry tracks live allocations reported by a host program.
//
// NOT thread-safe. A nil or closed Registry ignores notifications.
type Registry struct {
	pool    *pool.Pool
	buckets []uint32 // head slot of each chain, noSlot when empty
	sites   siteTable
	live    int

	logger   *slog.Logger
	poolOpts []pool.Option
}

// New creates a registry with a record pool of cfg.MaxTracked slots and
// cfg.Buckets empty chains.
func New(cfg Config, opts ...Option) (*Registry, error) {
	cfg = cfg.withDefaults()
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.Or(r.logger)

	if cfg.Buckets < 0 {
		return nil, fmt.Errorf("watch: bucket count must be positive, got %d", cfg.Buckets)
	}

	r.logger.Debug("Memory watchdog initializing ...", "max_tracked", cfg.MaxTracked, "buckets", cfg.Buckets)

	popts := append([]pool.Option{
		pool.WithLogger(r.logger),
		pool.WithReclaimReposition(cfg.ReclaimReposition),
	}, r.poolOpts...)
	p, err := pool.New(PoolLabel, cfg.MaxTracked, recordSize, popts...)
	if err != nil {
		r.logger.Warn("watch: failed to init memory pool", "err", err)
		return nil, fmt.Errorf("watch: init: %w", err)
	}

	r.pool = p
	r.buckets = make([]uint32, cfg.Buckets)
	for i := range r.buckets {
		r.buckets[i] = noSlot
	}
	r.sites = newSiteTable()
	return r, nil
}

// NotifyAllocate records that ptr was allocated with size bytes at site.
func (r *Registry) NotifyAllocate(ptr uintptr, size uint64, site Site) error {
	return r.track("alloc", KindAllocate, ptr, size, site)
}

// NotifyReallocate records that ptr was returned by a reallocation to size
// bytes at site. The host reports the old pointer's free separately.
func (r *Registry) NotifyReallocate(ptr uintptr, size uint64, site Site) error {
	return r.track("realloc", KindReallocate, ptr, size, site)
}

func (r *Registry) track(op string, kind Kind, ptr uintptr, size uint64, site Site) error {
	if !r.ready() {
		r.log().Debug("watch: notification before init", "op", op, "ptr", hex(ptr), "site", site.String())
		return fmt.Errorf("%w: %s %s", ErrNotInitialized, op, hex(ptr))
	}

	addr, err := r.pool.AcquireZeroed()
	if err != nil {
		st := r.pool.Stats()
		r.logger.Warn("watch: memory pool exhausted!",
			"op", op,
			"site", site.String(),
			"ptr", hex(ptr),
			"allocated", st.Allocated,
			"capacity", st.Capacity,
			"alloc_fail", st.AllocFailures,
			"alloc_peek", st.PeakAllocated,
		)
		return fmt.Errorf("%w: %s %s at %s: %w", ErrPoolExhausted, op, hex(ptr), site, err)
	}
	i, _ := r.pool.Index(addr)
	idx := uint32(i)

	r.at(idx).fill(ptr, size, kind, r.sites.id(site.File), site.Line)
	r.link(r.bucketOf(ptr), idx)
	r.live++
	return nil
}

// NotifyFree removes the record for ptr. A pointer with no live record is
// logged and reported as ErrUntrackedFree; nothing else changes.
func (r *Registry) NotifyFree(ptr uintptr, site Site) error {
	if !r.ready() {
		r.log().Debug("watch: notification before init", "op", "free", "ptr", hex(ptr), "site", site.String())
		return fmt.Errorf("%w: free %s", ErrNotInitialized, hex(ptr))
	}

	b := r.bucketOf(ptr)
	i, ok := r.find(b, ptr)
	if !ok {
		r.logger.Warn("watch: pointer not in hash", "site", site.String(), "ptr", hex(ptr))
		return fmt.Errorf("%w: %s at %s", ErrUntrackedFree, hex(ptr), site)
	}

	r.unlink(b, i)
	addr, _ := r.pool.SlotAddr(int(i))
	if err := r.pool.Release(addr); err != nil {
		return fmt.Errorf("watch: free %s: %w", hex(ptr), err)
	}
	r.live--
	return nil
}

// Lookup returns the live record for ptr.
func (r *Registry) Lookup(ptr uintptr) (Record, bool) {
	if !r.ready() {
		return Record{}, false
	}
	b := r.bucketOf(ptr)
	i, ok := r.find(b, ptr)
	if !ok {
		return Record{}, false
	}
	return r.record(b, i), true
}

// Live returns the number of tracked allocations.
func (r *Registry) Live() int {
	if r == nil {
		return 0
	}
	return r.live
}

// Stats returns the record pool's statistics.
func (r *Registry) Stats() pool.Stats {
	if r == nil || r.pool == nil {
		return pool.Stats{Label: PoolLabel}
	}
	return r.pool.Stats()
}

// Buckets returns the number of hash chains.
func (r *Registry) Buckets() int {
	if r == nil {
		return 0
	}
	return len(r.buckets)
}

// Close destroys the record pool. Later notifications return ErrNotInitialized.
func (r *Registry) Close() error {
	if !r.ready() {
		return ErrNotInitialized
	}
	p := r.pool
	r.buckets = nil
	r.live = 0
	if err := p.Destroy(); err != nil {
		return fmt.Errorf("watch: close: %w", err)
	}
	return nil
}

func (r *Registry) ready() bool {
	return r != nil && r.pool != nil && r.buckets != nil
}

func (r *Registry) log() *slog.Logger {
	if r == nil {
		return logging.L
	}
	return logging.Or(r.logger)
}

// bucketOf hashes the pointer's integer value.
func (r *Registry) bucketOf(ptr uintptr) int {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], uint64(ptr))
	return int(xxhash.Sum64(key[:]) % uint64(len(r.buckets)))
}

func (r *Registry) at(i uint32) slot {
	return slot(r.pool.Slot(int(i)))
}

func (r *Registry) find(b int, ptr uintptr) (uint32, bool) {
	for i := r.buckets[b]; i != noSlot; i = r.at(i).next() {
		if r.at(i).pointer() == uint64(ptr) {
			return i, true
		}
	}
	return noSlot, false
}

// link pushes slot i onto the head of bucket b.
func (r *Registry) link(b int, i uint32) {
	head := r.buckets[b]
	s := r.at(i)
	s.setNext(head)
	s.setPrev(noSlot)
	if head != noSlot {
		r.at(head).setPrev(i)
	}
	r.buckets[b] = i
}

func (r *Registry) unlink(b int, i uint32) {
	s := r.at(i)
	next, prev := s.next(), s.prev()
	if prev == noSlot {
		r.buckets[b] = next
	} else {
		r.at(prev).setNext(next)
	}
	if next != noSlot {
		r.at(next).setPrev(prev)
	}
	s.setNext(noSlot)
	s.setPrev(noSlot)
}

func (r *Registry) record(b int, i uint32) Record {
	s := r.at(i)
	return Record{
		Pointer: uintptr(s.pointer()),
		Size:    s.size(),
		Kind:    s.kind(),
		Site:    Site{File: r.sites.name(s.site()), Line: int(s.line())},
		Bucket:  b,
	}
}

func hex(ptr uintptr) string { return fmt.Sprintf("%#x", ptr) }
