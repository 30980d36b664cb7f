// Package provider implements JSON-RPC providers.
//
// This package contains:
//   - RPCProvider interface: core abstraction for RPC endpoints
//   - HTTPProvider: JSON-RPC 2.0 over HTTP implementation
//   - RPCError: a decoded JSON-RPC error object
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RPCProvider is a single JSON-RPC endpoint.
type RPCProvider interface {
	// GetName returns provider identifier (e.g., "solana", "helius")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// Call makes a single RPC request and returns the raw result
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
