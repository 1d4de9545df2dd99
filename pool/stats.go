package pool

import (
	"bytes"
	"io"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a snapshot of a pool's geometry and usage counters.
type Stats struct {
	Label       string `json:"label"`
	Capacity    int    `json:"capacity"`
	SlotSize    int    `json:"slot_size"`
	BitmapBits  int    `json:"bitmap_bits"`  // Capacity rounded up to a whole byte
	BitmapBytes int    `json:"bitmap_bytes"` // Bytes backing the bitmap
	ArenaBytes  int    `json:"arena_bytes"`

	Allocated       int `json:"allocated"`        // Slots currently in use
	AllocRequests   int `json:"alloc_requests"`   // Successful Acquire calls
	ReclaimRequests int `json:"reclaim_requests"` // Successful Release calls
	AllocFailures   int `json:"alloc_failures"`   // Acquire calls that found the pool full
	ReclaimFailures int `json:"reclaim_failures"` // Release calls rejected as invalid or double free
	PeakAllocated   int `json:"peak_allocated"`   // High-water mark of Allocated

	ScanCursor int `json:"scan_cursor"`
}

// Free returns the number of unallocated slots.
func (s Stats) Free() int { return s.Capacity - s.Allocated }

// WriteText writes the statistics block used in watchdog reports:
//
//	watchdog_mem: obj_siz=40, max_objs=20,000, bmap_siz=20,000
//	max_bytes=2,500, alloc_peek=3
//	watchdog_mem: arena 781 KiB, free 19,999
//	watchdog_mem: allocated 1, alloc_req 3, alloc_fail 0
//	watchdog_mem: reclaim_req 2, reclaim_fail 0
func (s Stats) WriteText(w io.Writer) error {
	pr := message.NewPrinter(language.English)
	var b bytes.Buffer
	pr.Fprintf(&b, "%s: obj_siz=%d, max_objs=%d, bmap_siz=%d\n", s.Label, s.SlotSize, s.Capacity, s.BitmapBits)
	pr.Fprintf(&b, "max_bytes=%d, alloc_peek=%d\n", s.BitmapBytes, s.PeakAllocated)
	pr.Fprintf(&b, "%s: arena %s, free %d\n", s.Label, humanize.IBytes(uint64(s.ArenaBytes)), s.Free())
	pr.Fprintf(&b, "%s: allocated %d, alloc_req %d, alloc_fail %d\n", s.Label, s.Allocated, s.AllocRequests, s.AllocFailures)
	pr.Fprintf(&b, "%s: reclaim_req %d, reclaim_fail %d\n", s.Label, s.ReclaimRequests, s.ReclaimFailures)
	_, err := w.Write(b.Bytes())
	return err
}

func (s Stats) String() string {
	var b bytes.Buffer
	_ = s.WriteText(&b)
	return b.String()
}
