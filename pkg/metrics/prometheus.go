package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the signaling service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Identity Registry
	registrationsTotal *prometheus.CounterVec

	// Presence Tracker
	presencePingsTotal prometheus.Counter
	onlineQueriesTotal *prometheus.CounterVec
	presenceEntries    prometheus.Gauge

	// Matchmaking Pool
	matchmakingPoolSize prometheus.Gauge
	matchAttemptsTotal  *prometheus.CounterVec

	// Peer Broker
	brokerConnections   prometheus.Gauge
	brokerMessagesTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics on a private registry
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),

		registrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "identity_registrations_total",
				Help:        "Identity registrations by result (created, existing, invalid, error)",
				ConstLabels: labels,
			},
			[]string{"result"},
		),

		presencePingsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "presence_pings_total",
				Help:        "Total number of accepted presence heartbeats",
				ConstLabels: labels,
			},
		),
		onlineQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "presence_online_queries_total",
				Help:        "Liveness queries by answer",
				ConstLabels: labels,
			},
			[]string{"online"},
		),
		presenceEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "presence_entries",
				Help:        "Number of ids ever seen by the presence tracker",
				ConstLabels: labels,
			},
		),

		matchmakingPoolSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "matchmaking_pool_size",
				Help:        "Number of ids opted into anonymous pairing",
				ConstLabels: labels,
			},
		),
		matchAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "matchmaking_attempts_total",
				Help:        "Partner picks by result (matched, empty)",
				ConstLabels: labels,
			},
			[]string{"result"},
		),

		brokerConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "broker_connections",
				Help:        "Number of connected peer broker websockets",
				ConstLabels: labels,
			},
		),
		brokerMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "broker_messages_total",
				Help:        "Broker messages by type and outcome",
				ConstLabels: labels,
			},
			[]string{"type", "outcome"},
		),
	}
}

// GetRegistry returns the registry the metrics were created on
func (m *Metrics) GetRegistry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records one completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *Metrics) IncrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Inc()
}

func (m *Metrics) DecrementHTTPRequestsInFlight() {
	if m == nil {
		return
	}
	m.httpRequestsInFlight.Dec()
}

// RecordRegistration counts a registration by result
func (m *Metrics) RecordRegistration(result string) {
	if m == nil {
		return
	}
	m.registrationsTotal.WithLabelValues(result).Inc()
}

// RecordPresencePing counts a heartbeat and tracks how many ids are known
func (m *Metrics) RecordPresencePing(entries int) {
	if m == nil {
		return
	}
	m.presencePingsTotal.Inc()
	m.presenceEntries.Set(float64(entries))
}

// RecordOnlineQuery counts a liveness query by its answer
func (m *Metrics) RecordOnlineQuery(online bool) {
	if m == nil {
		return
	}
	m.onlineQueriesTotal.WithLabelValues(strconv.FormatBool(online)).Inc()
}

// SetMatchmakingPoolSize updates the pool size gauge
func (m *Metrics) SetMatchmakingPoolSize(size int) {
	if m == nil {
		return
	}
	m.matchmakingPoolSize.Set(float64(size))
}

// RecordMatchAttempt counts a partner pick
func (m *Metrics) RecordMatchAttempt(matched bool) {
	if m == nil {
		return
	}
	result := "empty"
	if matched {
		result = "matched"
	}
	m.matchAttemptsTotal.WithLabelValues(result).Inc()
}

// SetBrokerConnections updates the connected broker clients gauge
func (m *Metrics) SetBrokerConnections(count int) {
	if m == nil {
		return
	}
	m.brokerConnections.Set(float64(count))
}

// RecordBrokerMessage counts a broker message by type and outcome (delivered, expired, dropped, invalid)
func (m *Metrics) RecordBrokerMessage(msgType, outcome string) {
	if m == nil {
		return
	}
	m.brokerMessagesTotal.WithLabelValues(msgType, outcome).Inc()
}
