package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal tracks log notifications received per outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexwatch_notifications_total",
			Help: "Total number of log notifications received",
		},
		[]string{"result"},
	)

	// ClassificationsTotal tracks classifier outcomes
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexwatch_classifications_total",
			Help: "Total number of transactions classified",
		},
		[]string{"kind", "result"},
	)

	// AlertsEmitted tracks alerts delivered per token
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexwatch_alerts_emitted_total",
			Help: "Total number of alerts emitted",
		},
		[]string{"token"},
	)

	// AlertsSuppressed tracks transfers that did not pass the filter
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexwatch_alerts_suppressed_total",
			Help: "Total number of transfers suppressed by the alert filter",
		},
		[]string{"reason"},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dexwatch_active_subscriptions",
			Help: "Number of live wallet subscriptions",
		},
	)

	// SubscriptionRestarts tracks close-then-open cycles after wallet edits
	SubscriptionRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dexwatch_subscription_restarts_total",
			Help: "Total number of subscription restarts",
		},
	)

	// RPCCallsTotal tracks RPC calls per provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexwatch_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexwatch_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dexwatch_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	WSReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dexwatch_ws_reconnects_total",
			Help: "Total number of log stream reconnects",
		},
	)

	// PipelineDuration tracks the time from notification to verdict
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dexwatch_pipeline_duration_seconds",
			Help:    "Notification pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dexwatch_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// AlertsPruned counts alert history rows removed by the pruner
	AlertsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dexwatch_alerts_pruned_total",
			Help: "Total number of alert history rows pruned",
		},
	)
)
