package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/vietddude/dexwatch/internal/infra/rpc/provider"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// ErrorAction determines how to handle an error.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionFailover
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFailover:
		return "failover"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// ClassifyError determines the action for a given error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionFatal
	}

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case -32700, -32600, -32601, -32602:
			return ActionFatal
		case 429:
			return ActionFailover
		}
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "unauthorized") ||
		strings.Contains(s, "rate limit") {
		return ActionFailover
	}

	// Network, 5xx, node behind
	return ActionRetry
}

// CallWithRetry executes an RPC call with exponential backoff.
func CallWithRetry(
	ctx context.Context,
	p provider.RPCProvider,
	method string,
	params []any,
	config RetryConfig,
) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		result, err := p.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if action := ClassifyError(err); action != ActionRetry {
			return nil, err
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(calculateBackoff(attempt, config)):
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, lastErr)
}

// CallWithFailover tries each provider in order, retrying within a provider,
// and stops at the first fatal error.
func CallWithFailover(
	ctx context.Context,
	providers []provider.RPCProvider,
	method string,
	params []any,
	config RetryConfig,
) ([]byte, error) {
	if len(providers) == 0 {
		return nil, errors.New("no rpc providers configured")
	}

	var lastErr error
	for _, p := range providers {
		result, err := CallWithRetry(ctx, p, method, params, config)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ClassifyError(err) == ActionFatal {
			return nil, fmt.Errorf("fatal error from provider %s: %w", p.GetName(), err)
		}
		slog.Warn("RPC provider failed, trying next", "provider", p.GetName(), "method", method, "error", err)
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiple, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	return time.Duration(delay)
}
