package dispatcher

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a resource server.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resource",
				Name:      "requests_total",
				Help:      "Total number of resource requests handled",
			},
			[]string{"resource", "scope", "verb", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "resource",
				Name:      "request_duration_seconds",
				Help:      "Resource request handling duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"resource", "scope", "verb"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "resource",
				Name:      "requests_in_flight",
				Help:      "Number of resource requests currently being handled",
			},
			[]string{"resource"},
		),
	}
}

func (m *Metrics) begin(resourceName string) {
	if m == nil {
		return
	}
	m.RequestsInFlight.WithLabelValues(resourceName).Inc()
}

func (m *Metrics) end(resourceName, scope, verb string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.RequestsInFlight.WithLabelValues(resourceName).Dec()
	m.RequestsTotal.WithLabelValues(resourceName, scope, verb, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(resourceName, scope, verb).Observe(time.Since(started).Seconds())
}
