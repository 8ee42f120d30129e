package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/abworrall/kronflux/pkg/kron"
)

// Metrics are Prometheus collectors for a run. A batch job has no
// server to be scraped, so they get written out as a node_exporter
// textfile at the end.
type Metrics struct {
	Registry *prometheus.Registry

	Sources  *prometheus.CounterVec
	Flags    *prometheus.CounterVec
	Radius   prometheus.Histogram
	Duration prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		Sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kron_sources_total",
			Help: "Sources measured, labeled by outcome (ok or failed).",
		}, []string{"outcome"}),

		Flags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kron_flags_total",
			Help: "Diagnostic flags raised, labeled by flag name.",
		}, []string{"flag"}),

		Radius: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kron_radius_pixels",
			Help:    "Kron radius of successfully measured sources.",
			Buckets: prometheus.ExponentialBuckets(0.5, 1.5, 12),
		}),

		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kron_measure_duration_seconds",
			Help:    "Time to measure one source.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}

	m.Registry.MustRegister(m.Sources, m.Flags, m.Radius, m.Duration)
	return m
}

func (m *Metrics) Observe(rec kron.Record, d time.Duration) {
	outcome := "ok"
	if rec.Kron.Failed() {
		outcome = "failed"
	} else {
		m.Radius.Observe(rec.Kron.Radius)
	}
	m.Sources.WithLabelValues(outcome).Inc()

	for _, name := range rec.Kron.Flags.Names() {
		m.Flags.WithLabelValues(name).Inc()
	}
	m.Duration.Observe(d.Seconds())
}

func (m *Metrics) WriteToTextfile(filename string) error {
	if err := prometheus.WriteToTextfile(filename, m.Registry); err != nil {
		return fmt.Errorf("metrics write %s: %v", filename, err)
	}
	return nil
}
