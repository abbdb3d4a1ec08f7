// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"depthview-go/internal/pipeline"
)

const namespace = "depthview"

// Metrics owns a private registry so tests and multiple instances never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	frames          *prometheus.CounterVec
	processSeconds  prometheus.Histogram
	sensorAvailable prometheus.Gauge
}

var _ pipeline.Observer = (*Metrics)(nil)

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frame notifications handled, by outcome.",
		}, []string{"outcome"}),
		processSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_process_seconds",
			Help:      "Time from acquisition to publication of a frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		sensorAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_available",
			Help:      "1 while the depth sensor is available.",
		}),
	}
	reg.MustRegister(
		m.frames,
		m.processSeconds,
		m.sensorAvailable,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, o := range []pipeline.Outcome{
		pipeline.OutcomePublished,
		pipeline.OutcomeAcquireFailed,
		pipeline.OutcomeRejected,
		pipeline.OutcomeBusy,
	} {
		m.frames.WithLabelValues(o.String())
	}
	return m
}

func (m *Metrics) ObserveFrame(outcome pipeline.Outcome, elapsed time.Duration) {
	m.frames.WithLabelValues(outcome.String()).Inc()
	if outcome == pipeline.OutcomePublished {
		m.processSeconds.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) SetSensorAvailable(available bool) {
	if available {
		m.sensorAvailable.Set(1)
		return
	}
	m.sensorAvailable.Set(0)
}

// CounterFunc registers a counter read from fn at scrape time.
func (m *Metrics) CounterFunc(name, help string, fn func() uint64) error {
	return m.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) }))
}

// GaugeFunc registers a gauge read from fn at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
