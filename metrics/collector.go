// Package metrics exposes record pool and registry statistics as
// Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/memwatch/pool"
)

// Source is anything that can report pool statistics and a live record
// count. *watch.Registry satisfies it.
type Source interface {
	Stats() pool.Stats
	Live() int
}

// PoolSource adapts a bare *pool.Pool to Source, counting allocated slots as
// live records.
type PoolSource struct {
	*pool.Pool
}

// Live returns the number of allocated slots.
func (s PoolSource) Live() int { return s.Stats().Allocated }

// Collector implements prometheus.Collector over a Source. Values are read
// at scrape time; the caller synchronizes the Source if it is shared.
type Collector struct {
	src Source

	capacity        *prometheus.Desc
	slotSize        *prometheus.Desc
	allocated       *prometheus.Desc
	peakAllocated   *prometheus.Desc
	liveRecords     *prometheus.Desc
	allocRequests   *prometheus.Desc
	reclaimRequests *prometheus.Desc
	allocFailures   *prometheus.Desc
	reclaimFailures *prometheus.Desc
}

// NewCollector describes src's metrics under namespace. Every metric
// carries a pool label with the pool's name.
func NewCollector(src Source, namespace string) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"pool"}, nil)
	}
	return &Collector{
		src:             src,
		capacity:        desc("pool_capacity", "Number of slots in the record pool."),
		slotSize:        desc("pool_slot_size_bytes", "Aligned size of one pool slot in bytes."),
		allocated:       desc("pool_allocated_slots", "Slots currently in use."),
		peakAllocated:   desc("pool_peak_allocated_slots", "High-water mark of slots in use."),
		liveRecords:     desc("registry_live_records", "Allocations currently tracked."),
		allocRequests:   desc("pool_alloc_requests_total", "Successful slot acquisitions."),
		reclaimRequests: desc("pool_reclaim_requests_total", "Successful slot releases."),
		allocFailures:   desc("pool_alloc_failures_total", "Acquisitions that found the pool full."),
		reclaimFailures: desc("pool_reclaim_failures_total", "Releases rejected as invalid or double free."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.slotSize
	ch <- c.allocated
	ch <- c.peakAllocated
	ch <- c.liveRecords
	ch <- c.allocRequests
	ch <- c.reclaimRequests
	ch <- c.allocFailures
	ch <- c.reclaimFailures
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	label := st.Label

	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity), label)
	ch <- prometheus.MustNewConstMetric(c.slotSize, prometheus.GaugeValue, float64(st.SlotSize), label)
	ch <- prometheus.MustNewConstMetric(c.allocated, prometheus.GaugeValue, float64(st.Allocated), label)
	ch <- prometheus.MustNewConstMetric(c.peakAllocated, prometheus.GaugeValue, float64(st.PeakAllocated), label)
	ch <- prometheus.MustNewConstMetric(c.liveRecords, prometheus.GaugeValue, float64(c.src.Live()), label)
	ch <- prometheus.MustNewConstMetric(c.allocRequests, prometheus.CounterValue, float64(st.AllocRequests), label)
	ch <- prometheus.MustNewConstMetric(c.reclaimRequests, prometheus.CounterValue, float64(st.ReclaimRequests), label)
	ch <- prometheus.MustNewConstMetric(c.allocFailures, prometheus.CounterValue, float64(st.AllocFailures), label)
	ch <- prometheus.MustNewConstMetric(c.reclaimFailures, prometheus.CounterValue, float64(st.ReclaimFailures), label)
}
