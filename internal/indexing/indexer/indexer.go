package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/indexing/filter"
	"github.com/vietddude/dexwatch/internal/infra/chain"
)

// Outcome is the terminal state of one notification.
type Outcome string

const (
	OutcomeAlerted      Outcome = "alerted"
	OutcomeSuppressed   Outcome = "suppressed"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeFailedTx     Outcome = "failed_tx"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeFetchError   Outcome = "fetch_error"
	OutcomeKindMismatch Outcome = "kind_mismatch"
	OutcomeIncoming     Outcome = "incoming"
	OutcomeUnmatched    Outcome = "unmatched"
	OutcomeEmitError    Outcome = "emit_error"
	OutcomePanic        Outcome = "panic"
)

// Deduper remembers which signatures were already handled for a wallet.
type Deduper interface {
	// MarkSeen returns true the first time signature is seen for walletID
	MarkSeen(ctx context.Context, walletID, signature string, ttl time.Duration) (bool, error)

	// Forget releases a mark so a later delivery is processed again
	Forget(ctx context.Context, walletID, signature string) error
}

// Config holds pipeline configuration
type Config struct {
	Fetcher chain.TransactionFetcher
	Filter  *filter.AlertFilter
	Emitter emitter.Emitter
	Deduper Deduper
	Logger  *slog.Logger

	DedupTTL     time.Duration
	FetchTimeout time.Duration
	// NotFoundRetries is how often a not yet confirmed transaction is refetched
	NotFoundRetries int
	NotFoundDelay   time.Duration
}

func (c *Config) withDefaults() {
	if c.Filter == nil {
		c.Filter = filter.New(nil)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.DedupTTL == 0 {
		c.DedupTTL = 10 * time.Minute
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.NotFoundDelay == 0 {
		c.NotFoundDelay = time.Second
	}
}

// MemoryDeduper is an in-process Deduper with per-entry expiry.
type MemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	now     func() time.Time
	inserts int
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) MarkSeen(ctx context.Context, walletID, signature string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	key := walletID + ":" + signature
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[key] = now.Add(ttl)

	d.inserts++
	if d.inserts%1024 == 0 {
		for k, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, k)
			}
		}
	}
	return true, nil
}

func (d *MemoryDeduper) Forget(ctx context.Context, walletID, signature string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, walletID+":"+signature)
	return nil
}

// Len returns the number of tracked entries.
func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
