// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	RPCCallLatency  *prometheus.HistogramVec
	DecoderFailures *prometheus.CounterVec
	PremiumChecks   *prometheus.CounterVec
	PollerOutcomes  *prometheus.CounterVec

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec

	// Boost metrics
	MomentumLookups *prometheus.CounterVec
	BoostsComputed  *prometheus.CounterVec

	// Broadcast metrics
	BroadcastRuns       *prometheus.CounterVec
	BroadcastDuration   prometheus.Histogram
	BroadcastDeliveries *prometheus.CounterVec

	// Surface metrics
	BotCommands     *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPRequestTime *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulBroadcast prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "edgeai"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		DecoderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "decoder_failures_total",
			Help:      "Account fetch/decode failures by layout and kind",
		}, []string{"layout", "kind"}),
		PremiumChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "premium_checks_total",
			Help:      "Premium checks by result",
		}, []string{"result"}),
		PollerOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "poller_outcomes_total",
			Help:      "Subscription poller terminal states",
		}, []string{"outcome"}),

		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "External provider requests by provider and status",
		}, []string{"provider", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_latency_seconds",
			Help:      "External provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"provider"}),

		MomentumLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boost",
			Name:      "momentum_lookups_total",
			Help:      "Momentum cache lookups by outcome (hit, refresh, feed_error)",
		}, []string{"outcome"}),
		BoostsComputed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "boost",
			Name:      "computed_total",
			Help:      "Boost computations by signal",
		}, []string{"signal"}),

		BroadcastRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "runs_total",
			Help:      "Broadcast runs by status",
		}, []string{"status"}),
		BroadcastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "duration_seconds",
			Help:      "Broadcast run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BroadcastDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Signal deliveries by status",
		}, []string{"status"}),

		BotCommands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Bot commands handled by command name",
		}, []string{"command"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP API requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulBroadcast: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_broadcast_timestamp",
			Help:      "Unix timestamp of last completed broadcast run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDecoderFailure counts a failed account fetch/decode.
// kind is one of not_found, malformed, transport.
func RecordDecoderFailure(layout, kind string) {
	DefaultMetrics.DecoderFailures.WithLabelValues(layout, kind).Inc()
}

// RecordPremiumCheck records a premium check result (premium, free).
func RecordPremiumCheck(result string) {
	DefaultMetrics.PremiumChecks.WithLabelValues(result).Inc()
}

// RecordPollerOutcome records a poller terminal state.
func RecordPollerOutcome(outcome string) {
	DefaultMetrics.PollerOutcomes.WithLabelValues(outcome).Inc()
}

// RecordProviderRequest records an external provider call.
func RecordProviderRequest(provider string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.ProviderRequests.WithLabelValues(provider, status).Inc()
	DefaultMetrics.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// SetBreakerState records a circuit breaker transition.
func SetBreakerState(provider string, state int) {
	DefaultMetrics.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordMomentumLookup records a momentum cache outcome.
func RecordMomentumLookup(outcome string) {
	DefaultMetrics.MomentumLookups.WithLabelValues(outcome).Inc()
}

// RecordBoost records a computed boost signal.
func RecordBoost(signal string) {
	DefaultMetrics.BoostsComputed.WithLabelValues(signal).Inc()
}

// RecordBroadcastRun records a finished broadcast run.
func RecordBroadcastRun(status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.BroadcastRuns.WithLabelValues(status).Inc()
	DefaultMetrics.BroadcastDuration.Observe(durationSeconds)
	if status != "error" {
		DefaultMetrics.LastSuccessfulBroadcast.Set(float64(finishedUnix))
	}
}

// RecordDelivery records a single delivery attempt.
func RecordDelivery(status string) {
	DefaultMetrics.BroadcastDeliveries.WithLabelValues(status).Inc()
}

// RecordBotCommand counts a handled bot command.
func RecordBotCommand(command string) {
	DefaultMetrics.BotCommands.WithLabelValues(command).Inc()
}

// RecordHTTPRequest records an HTTP API request.
func RecordHTTPRequest(route, code string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
	DefaultMetrics.HTTPRequestTime.WithLabelValues(route).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
