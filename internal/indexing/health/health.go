// Package health provides system health monitoring and the heartbeat server.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Monitoring states reported alongside the status.
const (
	MonitoringActive = "active"
	MonitoringPaused = "paused"
)

// ProviderHealth is the health of one RPC provider.
type ProviderHealth struct {
	Name      string  `json:"name"`
	Available bool    `json:"available"`
	LatencyMs int64   `json:"latency_ms"`
	ErrorRate float64 `json:"error_rate"`
}

// Report contains the full system health report.
type Report struct {
	Status        SystemStatus     `json:"status"`
	Monitoring    string           `json:"monitoring"`
	Subscriptions int              `json:"subscriptions"`
	Epoch         uint64           `json:"epoch,omitempty"`
	RPCLatencyMs  int64            `json:"rpc_latency_ms"`
	RPCError      string           `json:"rpc_error,omitempty"`
	Providers     []ProviderHealth `json:"providers,omitempty"`
	Time          time.Time        `json:"time"`
}
