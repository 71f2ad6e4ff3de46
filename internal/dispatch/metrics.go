package dispatch

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes dispatcher observability over Prometheus. It is
// constructed against a caller-owned registry (never the global default
// registry) so multiple Dispatchers in the same process, or in tests,
// never collide on metric registration.
type Metrics struct {
	downloads    *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	bytesWritten *prometheus.CounterVec
}

// NewMetrics registers dispatcher metrics on reg and returns a Metrics
// handle to feed them from the dispatcher's worker loop.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsfetch_downloads_total",
			Help: "Completed download attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hlsfetch_queue_depth",
			Help: "Pending items in the dispatcher work queue.",
		}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hlsfetch_bytes_written_total",
			Help: "Total bytes written to disk by the dispatcher, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.downloads, m.queueDepth, m.bytesWritten)
	return m
}

// NewNoopMetrics returns a Metrics that records nothing, for callers that
// don't want a Prometheus registry wired in (New uses it when passed nil
// metrics, as the dispatcher tests do).
func NewNoopMetrics() *Metrics {
	return &Metrics{
		downloads:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "noop_downloads_total"}, []string{"kind", "outcome"}),
		queueDepth:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "noop_queue_depth"}),
		bytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "noop_bytes_written_total"}, []string{"kind"}),
	}
}

func (m *Metrics) IncDownload(kind, outcome string) {
	if m == nil {
		return
	}
	m.downloads.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) AddBytes(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.WithLabelValues(kind).Add(float64(n))
}

// Handler serves the registry's metrics over HTTP, for --metrics-addr.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
