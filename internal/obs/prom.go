package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "order_emulator"

// Collector adapts a Metrics snapshot to Prometheus.
type Collector struct {
	metrics *Metrics

	counterDescs [counterEnd]*prometheus.Desc
	executeAvg   *prometheus.Desc
	iterateAvg   *prometheus.Desc
}

// NewCollector creates a Prometheus collector over the metrics.
func NewCollector(m *Metrics) *Collector {
	c := &Collector{
		metrics: m,
		executeAvg: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "execute_latency_avg_ns"),
			"Average command execution latency in nanoseconds", nil, nil),
		iterateAvg: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "iterate_latency_avg_ns"),
			"Average matching-core scan latency in nanoseconds", nil, nil),
	}
	for i := Counter(0); i < counterEnd; i++ {
		c.counterDescs[i] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", i.Name()), i.Name(), nil, nil)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counterDescs {
		ch <- d
	}
	ch <- c.executeAvg
	ch <- c.iterateAvg
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i := Counter(0); i < counterEnd; i++ {
		ch <- prometheus.MustNewConstMetric(
			c.counterDescs[i], prometheus.CounterValue, float64(c.metrics.Count(i)))
	}
	snap := c.metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(
		c.executeAvg, prometheus.GaugeValue, float64(snap.ExecuteLatency.Avg))
	ch <- prometheus.MustNewConstMetric(
		c.iterateAvg, prometheus.GaugeValue, float64(snap.IterateLatency.Avg))
}

// StartMetricsServer registers the collector and serves /metrics.
func StartMetricsServer(addr string, m *Metrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(m))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
