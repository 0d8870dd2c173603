package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus instruments.
type Metrics struct {
	ReservationsTotal *prometheus.CounterVec
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

// New registers the instruments against reg. Reservation outcomes carry an
// `outcome` label (reserved, insufficient_stock, not_found, conflict,
// error) so oversell pressure and race losses stay distinguishable.
func New(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReservationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_reservations_total",
				Help: "Total number of reservation attempts by outcome",
			},
			[]string{"outcome"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordReservation counts one reservation attempt.
func (m *Metrics) RecordReservation(outcome string) {
	m.ReservationsTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest counts one handled request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
