package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetmic/internal/domain"
)

// Metrics contains all Prometheus metrics for the microphone routines
type Metrics struct {
	gatherer prometheus.Gatherer

	// Routine metrics
	RoutineResults  *prometheus.CounterVec
	RoutineDuration *prometheus.HistogramVec
	CameraOutcomes  *prometheus.CounterVec
	StreamActive    prometheus.Gauge

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates the metrics on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		RoutineResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetmic_routine_results_total",
			Help: "Routine invocations by routine and outcome",
		}, []string{"routine", "outcome"}),
		RoutineDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meetmic_routine_duration_seconds",
			Help:    "Time spent in each routine, including device suspension points",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"routine"}),
		CameraOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetmic_camera_outcomes_total",
			Help: "Camera toggle outcomes",
		}, []string{"outcome"}),
		StreamActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meetmic_session_stream_active",
			Help: "1 when the session holds an acquired stream",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetmic_http_requests_total",
			Help: "Control API requests by route and status code",
		}, []string{"route", "status"}),
	}
}

// ObserveResult records a routine outcome. Successes are labelled "success",
// failures by their error kind.
func (m *Metrics) ObserveResult(routine string, result domain.Result, elapsed time.Duration) {
	outcome := "success"
	if !result.OK() {
		outcome = string(result.Kind)
	}
	m.RoutineResults.WithLabelValues(routine, outcome).Inc()
	m.RoutineDuration.WithLabelValues(routine).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCamera(outcome domain.CameraOutcome) {
	var label string
	switch outcome {
	case domain.CameraTurnedOff:
		label = "turned_off"
	case domain.CameraAlreadyOff:
		label = "already_off"
	default:
		label = "not_found"
	}
	m.CameraOutcomes.WithLabelValues(label).Inc()
}

func (m *Metrics) SetStreamActive(active bool) {
	if active {
		m.StreamActive.Set(1)
		return
	}
	m.StreamActive.Set(0)
}

func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
