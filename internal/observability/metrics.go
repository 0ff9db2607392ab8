// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"solana-token-guard/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	OperationsTotal   *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec
	TransferredAmount prometheus.Counter
	RewardsIssued     prometheus.Counter
	EventStoreErrors  prometheus.Counter

	// Oracle metrics
	OraclePrice       prometheus.Gauge
	OraclePublishSlot prometheus.Gauge
	OracleUpdates     *prometheus.CounterVec

	// Solana client metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_token_guard"
	}

	return &Metrics{
		// Engine metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total number of engine operations by kind and outcome",
		}, []string{"kind", "outcome"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rejections_total",
			Help:      "Total number of rejected operations by kind and failing stage",
		}, []string{"kind", "stage"}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operation_latency_seconds",
			Help:      "Engine operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		TransferredAmount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transferred_minor_units_total",
			Help:      "Total token minor units moved by successful transfers",
		}),
		RewardsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rewards_issued_minor_units_total",
			Help:      "Total reward minor units minted by successful claims",
		}),
		EventStoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "event_store_errors_total",
			Help:      "Total number of audit events that could not be persisted",
		}),

		// Oracle metrics
		OraclePrice: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "price_usd",
			Help:      "Last accepted normalized oracle price in USD",
		}),
		OraclePublishSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "publish_slot",
			Help:      "Publish slot of the last accepted oracle price",
		}),
		OracleUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "updates_total",
			Help:      "Total number of price feed snapshots by verdict",
		}, []string{"verdict"}),

		// Solana client metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Database metrics
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

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEngineEvent counts one completed or rejected engine operation.
func RecordEngineEvent(e *domain.EngineEvent) {
	DefaultMetrics.OperationsTotal.WithLabelValues(e.Kind, e.Outcome).Inc()
	if e.Outcome == domain.OutcomeRejected {
		DefaultMetrics.RejectionsTotal.WithLabelValues(e.Kind, e.Stage).Inc()
		return
	}
	switch e.Kind {
	case domain.EventKindTransfer:
		DefaultMetrics.TransferredAmount.Add(float64(e.Amount))
	case domain.EventKindClaim:
		DefaultMetrics.RewardsIssued.Add(float64(e.Reward))
	}
}

// RecordOperationLatency records engine operation latency.
func RecordOperationLatency(kind string, seconds float64) {
	DefaultMetrics.OperationLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordEventStoreError counts an audit event that was lost.
func RecordEventStoreError() {
	DefaultMetrics.EventStoreErrors.Inc()
}

// RecordOracleQuote records a price feed snapshot. An empty reason means the
// snapshot produced a usable quote; price is then fixed-point with decimals.
func RecordOracleQuote(price uint64, decimals uint8, publishSlot uint64, reason string) {
	if reason != "" {
		DefaultMetrics.OracleUpdates.WithLabelValues(reason).Inc()
		return
	}
	DefaultMetrics.OracleUpdates.WithLabelValues("accepted").Inc()
	DefaultMetrics.OraclePrice.Set(PriceUSD(price, decimals))
	DefaultMetrics.OraclePublishSlot.Set(float64(publishSlot))
}

// PriceUSD converts a fixed-point price to a float for gauges.
func PriceUSD(price uint64, decimals uint8) float64 {
	return decimal.NewFromUint64(price).Shift(-int32(decimals)).InexactFloat64()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest counts one served HTTP request.
func RecordHTTPRequest(route, code string) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, code).Inc()
}
