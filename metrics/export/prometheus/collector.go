// Package prometheus bridges tenauth engine counters into a Prometheus
// registry.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tenantkit/tenauth"
)

// Collector implements prometheus.Collector over an engine's metric
// snapshot. Counters are exported as tenauth_<name>_total; the permission
// check latency histogram as tenauth_permission_check_latency.
type Collector struct {
	engine *tenauth.Engine
	descs  map[tenauth.MetricID]*prometheus.Desc
	hist   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a Collector for the engine. Register it with
// prometheus.MustRegister.
func NewCollector(engine *tenauth.Engine) *Collector {
	descs := make(map[tenauth.MetricID]*prometheus.Desc)
	for _, id := range tenauth.MetricIDs() {
		if id == tenauth.MetricCheckLatency {
			continue
		}
		descs[id] = prometheus.NewDesc(
			"tenauth_"+id.Name()+"_total",
			"tenauth engine counter "+id.Name(),
			nil, nil,
		)
	}
	return &Collector{
		engine: engine,
		descs:  descs,
		hist: prometheus.NewDesc(
			"tenauth_permission_check_latency",
			"permission check latency distribution in milliseconds",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range c.descs {
		ch <- desc
	}
	ch <- c.hist
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.engine.MetricsSnapshot()

	for id, desc := range c.descs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snapshot.Counters[id]))
	}

	if len(snapshot.LatencyBuckets) == 0 {
		return
	}

	buckets := make(map[float64]uint64, len(tenauth.HistogramBucketBoundsMS))
	var count uint64
	for i, bound := range tenauth.HistogramBucketBoundsMS {
		count += snapshot.LatencyBuckets[i]
		buckets[float64(bound)] = count
	}
	count += snapshot.LatencyBuckets[len(snapshot.LatencyBuckets)-1]

	// Sum is not tracked; report zero and let consumers rely on buckets.
	ch <- prometheus.MustNewConstHistogram(c.hist, count, 0, buckets)
}
