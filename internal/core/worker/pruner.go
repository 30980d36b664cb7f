package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/dexwatch/internal/indexing/metrics"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// Pruner deletes alert history older than the retention period.
type Pruner struct {
	retention time.Duration
	alerts    storage.AlertRepository
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, alerts storage.AlertRepository) *Pruner {
	return &Pruner{
		retention: retention,
		alerts:    alerts,
		now:       time.Now,
	}
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// 10% of the retention period, clamped to [1m, 1h]
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass and returns the number of removed rows.
func (p *Pruner) Prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)
	removed, err := p.alerts.DeleteBefore(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune alert history", "cutoff", cutoff, "error", err)
		return 0
	}
	if removed > 0 {
		metrics.AlertsPruned.Add(float64(removed))
		slog.Info("Pruned alert history", "removed", removed, "cutoff", cutoff)
	}
	return removed
}
