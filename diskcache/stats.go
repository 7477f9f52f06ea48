package diskcache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the observable snapshot: hit/miss/load counters plus estimated
// weight (sum of on-disk file sizes) and entry count.
type Stats struct {
	EntryCount         int64
	EstimatedSizeBytes int64
	HitCount           int64
	MissCount          int64
	LoadCount          int64
	LoadFailureCount   int64
}

// RequestCount returns HitCount + MissCount.
func (s Stats) RequestCount() int64 {
	return s.HitCount + s.MissCount
}

type counters struct {
	hits, misses, loads, loadFailures atomic.Int64
}

func (c *counters) snapshot(entryCount, estimatedSize int64) Stats {
	return Stats{
		EntryCount:         entryCount,
		EstimatedSizeBytes: estimatedSize,
		HitCount:           c.hits.Load(),
		MissCount:          c.misses.Load(),
		LoadCount:          c.loads.Load(),
		LoadFailureCount:   c.loadFailures.Load(),
	}
}

// promCollector adapts a DiskCachingReader's counters to
// prometheus.Collector, the same metrics surface memorycache exposes.
type promCollector struct {
	r *DiskCachingReader

	hits, misses, loads, loadFailures, entries, sizeBytes *prometheus.Desc
}

// NewCollector returns a prometheus.Collector for r's stats, for callers
// that want to register it directly instead of via a constructor option.
func NewCollector(r *DiskCachingReader, constLabels prometheus.Labels) prometheus.Collector {
	ns := "rangereader_disk_cache"
	return &promCollector{
		r:            r,
		hits:         prometheus.NewDesc(ns+"_hits_total", "Number of cache hits.", nil, constLabels),
		misses:       prometheus.NewDesc(ns+"_misses_total", "Number of cache misses.", nil, constLabels),
		loads:        prometheus.NewDesc(ns+"_loads_total", "Number of delegate loads performed to populate the cache.", nil, constLabels),
		loadFailures: prometheus.NewDesc(ns+"_load_failures_total", "Number of delegate loads that returned an error.", nil, constLabels),
		entries:      prometheus.NewDesc(ns+"_entries", "Current number of cached entries.", nil, constLabels),
		sizeBytes:    prometheus.NewDesc(ns+"_estimated_size_bytes", "Estimated total cached weight in bytes (sum of on-disk file sizes).", nil, constLabels),
	}
}

func (c *promCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.loads
	ch <- c.loadFailures
	ch <- c.entries
	ch <- c.sizeBytes
}

func (c *promCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.r.Stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.HitCount))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.MissCount))
	ch <- prometheus.MustNewConstMetric(c.loads, prometheus.CounterValue, float64(s.LoadCount))
	ch <- prometheus.MustNewConstMetric(c.loadFailures, prometheus.CounterValue, float64(s.LoadFailureCount))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.EntryCount))
	ch <- prometheus.MustNewConstMetric(c.sizeBytes, prometheus.GaugeValue, float64(s.EstimatedSizeBytes))
}
