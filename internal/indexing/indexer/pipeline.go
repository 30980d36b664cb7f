package indexer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/classifier"
	"github.com/vietddude/dexwatch/internal/indexing/metrics"
)

// Pipeline turns log notifications into alerts:
// dedup -> fetch -> route -> direction -> classify -> filter -> emit.
type Pipeline struct {
	cfg Config
	now func() time.Time
}

// NewPipeline creates a new notification pipeline
func NewPipeline(cfg Config) *Pipeline {
	cfg.withDefaults()
	return &Pipeline{cfg: cfg, now: time.Now}
}

// Process handles one notification for wallet. It never panics and never
// returns an error; failures are logged and reported as an Outcome.
func (p *Pipeline) Process(ctx context.Context, wallet domain.Wallet, chatID int64, note domain.LogNotification) (outcome Outcome) {
	start := p.now()
	log := p.cfg.Logger.With("wallet", wallet.Label, "signature", note.Signature)
	marked := false

	defer func() {
		if r := recover(); r != nil {
			log.Error("Pipeline panic", "panic", r, "stack", string(debug.Stack()))
			outcome = OutcomePanic
		}
		// a redelivery after a failed fetch must run again
		if marked && (outcome == OutcomeFetchError || outcome == OutcomeNotFound || outcome == OutcomePanic) {
			p.forget(ctx, wallet.ID, note.Signature)
		}
		metrics.NotificationsTotal.WithLabelValues(string(outcome)).Inc()
		metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	if note.Failed {
		return OutcomeFailedTx
	}

	if p.cfg.Deduper != nil {
		first, err := p.cfg.Deduper.MarkSeen(ctx, wallet.ID, note.Signature, p.cfg.DedupTTL)
		switch {
		case err != nil:
			log.Warn("Dedup check failed, processing anyway", "error", err)
		case !first:
			return OutcomeDuplicate
		default:
			marked = true
		}
	}

	tx, err := p.fetch(ctx, note.Signature)
	if err != nil {
		log.Error("Failed to fetch transaction", "error", err)
		return OutcomeFetchError
	}
	if tx == nil {
		log.Debug("Transaction not confirmed yet")
		return OutcomeNotFound
	}
	if tx.Failed() {
		return OutcomeFailedTx
	}

	log.Debug("Transaction detected", "url", domain.ExplorerTxURL(note.Signature))

	kind := classifier.Route(tx)
	if (kind == domain.TransferKindNative) != (wallet.Token == domain.TokenSOL) {
		log.Debug("Transfer kind does not match wallet token", "kind", kind, "token", wallet.Token)
		metrics.ClassificationsTotal.WithLabelValues(string(kind), string(OutcomeKindMismatch)).Inc()
		return OutcomeKindMismatch
	}

	sender := classifier.IsNativeSender
	if kind == domain.TransferKindToken {
		sender = classifier.IsTokenSender
	}
	if !sender(tx, wallet.Address) {
		metrics.ClassificationsTotal.WithLabelValues(string(kind), string(OutcomeIncoming)).Inc()
		return OutcomeIncoming
	}

	transfer := classifier.Classify(tx, wallet.Address, kind)
	if transfer == nil {
		log.Debug("No counterparty reconciled", "kind", kind)
		metrics.ClassificationsTotal.WithLabelValues(string(kind), string(OutcomeUnmatched)).Inc()
		return OutcomeUnmatched
	}
	metrics.ClassificationsTotal.WithLabelValues(string(kind), "matched").Inc()

	verdict := p.cfg.Filter.Evaluate(transfer, wallet)
	if !verdict.Alert {
		log.Debug("Alert suppressed",
			"reason", verdict.Reason,
			"amount", verdict.Amount.String(),
			"min", wallet.MinBuy,
			"max", wallet.MaxBuy,
		)
		metrics.AlertsSuppressed.WithLabelValues(verdict.Reason).Inc()
		return OutcomeSuppressed
	}

	alert := &domain.Alert{
		Wallet:     wallet,
		ChatID:     chatID,
		Transfer:   *transfer,
		Token:      verdict.Token,
		Amount:     verdict.Amount,
		Signature:  note.Signature,
		DetectedAt: p.now(),
	}
	if err := p.cfg.Emitter.Emit(ctx, alert); err != nil {
		log.Error("Failed to emit alert", "error", err)
		return OutcomeEmitError
	}
	metrics.AlertsEmitted.WithLabelValues(string(verdict.Token)).Inc()
	return OutcomeAlerted
}

func (p *Pipeline) forget(ctx context.Context, walletID, signature string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.cfg.Deduper.Forget(ctx, walletID, signature); err != nil {
		p.cfg.Logger.Warn("Failed to release dedup mark", "wallet", walletID, "signature", signature, "error", err)
	}
}

func (p *Pipeline) fetch(ctx context.Context, signature string) (*domain.ConfirmedTransaction, error) {
	for attempt := 0; ; attempt++ {
		fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
		tx, err := p.cfg.Fetcher.GetTransaction(fetchCtx, signature)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", signature, err)
		}
		if tx != nil || attempt >= p.cfg.NotFoundRetries {
			return tx, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.NotFoundDelay):
		}
	}
}
