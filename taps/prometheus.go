package taps

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus fans taps into counters so every event and error the
// protocol emits is also a scrapeable metric.
type Prometheus struct {
	events *prometheus.CounterVec
	errors *prometheus.CounterVec
}

// NewPrometheus registers the tap counters against reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swim",
			Name:      "taps_total",
			Help:      "Count of structured protocol taps emitted, labeled by command.",
		}, []string{"cmd"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swim",
			Name:      "tap_errors_total",
			Help:      "Count of error taps (commands ending in -error), labeled by command.",
		}, []string{"cmd"}),
	}
	reg.MustRegister(p.events, p.errors)
	return p
}

// Emit implements Sink.
func (p *Prometheus) Emit(e Event) {
	p.events.WithLabelValues(e.Cmd).Inc()
	if e.IsError() {
		p.errors.WithLabelValues(e.Cmd).Inc()
	}
}
