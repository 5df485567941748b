package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus records paygate events into a prometheus registry.
type Prometheus struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheus registers paygate collectors with reg. Pass
// prometheus.DefaultRegisterer for the usual global registry.
func NewPrometheus(reg prometheus.Registerer) Recorder {
	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "events_total",
			Help:      "Challenge and verification event counters",
		},
		[]string{"type", "code"},
	)

	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paygate",
			Name:      "latency_seconds",
			Help:      "Operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	reg.MustRegister(events, latency)

	return &Prometheus{events: events, latency: latency}
}

func (p *Prometheus) IncCounter(name string, labels map[string]string) {
	p.events.With(prometheus.Labels{
		"type": name,
		"code": labels["code"],
	}).Inc()
}

func (p *Prometheus) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.latency.With(prometheus.Labels{
		"operation": name,
	}).Observe(d.Seconds())
}
