package watch

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/joshuapare/memwatch/pool"
)

// Report is a point-in-time listing of every live record and the record
// pool's statistics. Each record is either a leak or an allocation that is
// legitimately still in use; telling them apart is up to the caller.
type Report struct {
	Pool    pool.Stats `json:"pool"`
	Records []Record   `json:"records"`
}

// Report walks the buckets in index order and each chain from its head.
func (r *Registry) Report() Report {
	rep := Report{Pool: r.Stats()}
	if !r.ready() {
		return rep
	}
	rep.Records = make([]Record, 0, r.live)
	for b, head := range r.buckets {
		for i := head; i != noSlot; i = r.at(i).next() {
			rep.Records = append(rep.Records, r.record(b, i))
		}
	}
	return rep
}

// LiveBytes returns the total size of the listed records.
func (rep Report) LiveBytes() uint64 {
	var n uint64
	for _, rec := range rep.Records {
		n += rec.Size
	}
	return n
}

// WriteText writes the report in the watchdog's plain-text layout:
//
//	** Memory watchdog statistics:
//	>> memory pool:
//	<pool statistics>
//		bucket [17]
//			alloc (32 bytes) a.c 11 [0x2000]
//	>> 1 live allocation(s), 32 B
//	DONE
func (rep Report) WriteText(w io.Writer) error {
	var b bytes.Buffer
	b.WriteString("** Memory watchdog statistics:\n")
	b.WriteString(">> memory pool:\n")
	if err := rep.Pool.WriteText(&b); err != nil {
		return err
	}

	bucket := -1
	for _, rec := range rep.Records {
		if rec.Bucket != bucket {
			bucket = rec.Bucket
			fmt.Fprintf(&b, "\tbucket [%d]\n", bucket)
		}
		fmt.Fprintf(&b, "\t\t%s (%d bytes) %s %d [%#x]\n",
			rec.Kind, rec.Size, rec.Site.File, rec.Site.Line, rec.Pointer)
	}
	fmt.Fprintf(&b, ">> %d live allocation(s), %s\n", len(rep.Records), humanize.Bytes(rep.LiveBytes()))
	b.WriteString("DONE\n")

	_, err := w.Write(b.Bytes())
	return err
}

func (rep Report) String() string {
	var b bytes.Buffer
	_ = rep.WriteText(&b)
	return b.String()
}

// Log writes a summary line and one warning per live record to l.
func (rep Report) Log(l *slog.Logger) {
	st := rep.Pool
	l.Info("watch: memory watchdog statistics",
		"pool", st.Label,
		"capacity", st.Capacity,
		"slot_size", st.SlotSize,
		"allocated", st.Allocated,
		"alloc_req", st.AllocRequests,
		"alloc_fail", st.AllocFailures,
		"reclaim_req", st.ReclaimRequests,
		"reclaim_fail", st.ReclaimFailures,
		"alloc_peek", st.PeakAllocated,
		"live", len(rep.Records),
		"live_bytes", rep.LiveBytes(),
	)
	for _, rec := range rep.Records {
		l.Warn("watch: live allocation",
			"kind", rec.Kind.String(),
			"size", rec.Size,
			"site", rec.Site.String(),
			"ptr", hex(rec.Pointer),
			"bucket", rec.Bucket,
		)
	}
}
