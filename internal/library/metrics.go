package library

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the library's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	decodesTotal *prometheus.CounterVec
	listDuration prometheus.Histogram
	liveHandles  prometheus.Gauge
}

// NewMetrics constructs and registers the library metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyreader",
			Subsystem: "library",
			Name:      "decodes_total",
			Help:      "Total number of EPUB decodes performed for listings, by outcome.",
		}, []string{"outcome"}),
		listDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lazyreader",
			Subsystem: "library",
			Name:      "list_duration_seconds",
			Help:      "Duration of library listings in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lazyreader",
			Subsystem: "blobs",
			Name:      "live_handles",
			Help:      "Number of cover handles currently registered.",
		}),
	}

	reg.MustRegister(m.decodesTotal, m.listDuration, m.liveHandles)
	return m
}

func (m *Metrics) observeDecode(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.decodesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeList(start time.Time) {
	if m == nil {
		return
	}
	m.listDuration.Observe(time.Since(start).Seconds())
}

// SetLiveHandles records the number of live cover handles. It matches the
// blobs.Registry change callback.
func (m *Metrics) SetLiveHandles(n int) {
	if m == nil {
		return
	}
	m.liveHandles.Set(float64(n))
}
