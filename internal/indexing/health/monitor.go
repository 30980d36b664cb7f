package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/dexwatch/internal/infra/chain/solana"
	"github.com/vietddude/dexwatch/internal/infra/rpc/provider"
)

// RPCProber measures RPC round trips.
type RPCProber interface {
	GetEpochInfo(ctx context.Context) (*solana.EpochInfo, time.Duration, error)
	Providers() []provider.RPCProvider
}

// PauseState reports whether monitoring is paused.
type PauseState interface {
	Paused() bool
}

// SubscriptionCounter reports the number of live subscriptions.
type SubscriptionCounter interface {
	Count() int
}

// SlowThreshold marks an RPC probe as degraded.
const SlowThreshold = 2 * time.Second

// Monitor aggregates health status from the RPC and the subscription layer.
type Monitor struct {
	prober   RPCProber
	state    PauseState
	counter  SubscriptionCounter
	cacheTTL time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *Report
}

// NewMonitor creates a new health monitor. state and counter may be nil.
func NewMonitor(prober RPCProber, state PauseState, counter SubscriptionCounter) *Monitor {
	return &Monitor{
		prober:   prober,
		state:    state,
		counter:  counter,
		cacheTTL: 10 * time.Second,
		timeout:  10 * time.Second,
		now:      time.Now,
	}
}

// CheckHealth probes the RPC and reports the current state. RPC probes are
// rate limited to one per cache period.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var report Report
	if m.lastReport != nil && now.Sub(m.lastCheck) < m.cacheTTL {
		report = *m.lastReport
	} else {
		report = m.probe(ctx)
		m.lastCheck = now
		cached := report
		m.lastReport = &cached
	}

	// Local state is always fresh
	report.Monitoring = MonitoringActive
	if m.state != nil && m.state.Paused() {
		report.Monitoring = MonitoringPaused
	}
	if m.counter != nil {
		report.Subscriptions = m.counter.Count()
	}
	report.Time = now.UTC()
	return report
}

func (m *Monitor) probe(ctx context.Context) Report {
	report := Report{Status: StatusHealthy}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	info, latency, err := m.prober.GetEpochInfo(ctx)
	report.RPCLatencyMs = latency.Milliseconds()
	if err != nil {
		report.Status = StatusCritical
		report.RPCError = err.Error()
	} else {
		report.Epoch = info.Epoch
		if latency > SlowThreshold {
			report.Status = StatusDegraded
		}
	}

	for _, p := range m.prober.Providers() {
		h := p.GetHealth()
		report.Providers = append(report.Providers, ProviderHealth{
			Name:      p.GetName(),
			Available: h.Available,
			LatencyMs: h.Latency.Milliseconds(),
			ErrorRate: h.ErrorRate,
		})
		if !h.Available && report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}
