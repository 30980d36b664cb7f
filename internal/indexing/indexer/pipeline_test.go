package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

const (
	watched   = "So11111111111111111111111111111111111111112"
	recipient = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// ===== Mocks =====

type mockFetcher struct {
	mu    sync.Mutex
	txs   map[string]*domain.ConfirmedTransaction
	err   error
	calls int
	panic bool
}

func (m *mockFetcher) GetTransaction(ctx context.Context, sig string) (*domain.ConfirmedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.panic {
		panic("decoder exploded")
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.txs[sig], nil
}

type mockEmitter struct {
	mu     sync.Mutex
	alerts []*domain.Alert
	err    error
}

func (m *mockEmitter) Emit(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, a)
	return nil
}

func (m *mockEmitter) Close() error { return nil }

// ===== Fixtures =====

func solTransfer() *domain.ConfirmedTransaction {
	return &domain.ConfirmedTransaction{
		Signature:    "sol-sig",
		AccountKeys:  []string{watched, recipient},
		Fee:          5000,
		PreBalances:  []uint64{2_000_000_000, 0},
		PostBalances: []uint64{1_000_000_000, 999_995_000},
	}
}

func usdcTransfer() *domain.ConfirmedTransaction {
	bal := func(idx int, owner, amount string) domain.TokenBalance {
		return domain.TokenBalance{AccountIndex: idx, Owner: owner, Mint: domain.USDCMint, UIAmount: decimal.RequireFromString(amount), Decimals: 6}
	}
	return &domain.ConfirmedTransaction{
		Signature:         "usdc-sig",
		AccountKeys:       []string{watched, "ata1", "ata2"},
		Fee:               5000,
		PreBalances:       []uint64{1, 1, 1},
		PostBalances:      []uint64{1, 1, 1},
		PreTokenBalances:  []domain.TokenBalance{bal(1, watched, "500"), bal(2, recipient, "0")},
		PostTokenBalances: []domain.TokenBalance{bal(1, watched, "400"), bal(2, recipient, "100")},
	}
}

func solWallet() domain.Wallet {
	return domain.Wallet{ID: "w1", Label: "main", Address: watched, MinBuy: 0.5, MaxBuy: 2.0, Token: domain.TokenSOL, Active: true}
}

func newTestPipeline(f *mockFetcher, e *mockEmitter) *Pipeline {
	return NewPipeline(Config{
		Fetcher:       f,
		Emitter:       e,
		Deduper:       NewMemoryDeduper(),
		NotFoundDelay: time.Millisecond,
	})
}

// ===== Tests =====

func TestPipeline_NativeAlert(t *testing.T) {
	f := &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{"sol-sig": solTransfer()}}
	e := &mockEmitter{}
	p := newTestPipeline(f, e)

	got := p.Process(context.Background(), solWallet(), 7, domain.LogNotification{Signature: "sol-sig"})
	if got != OutcomeAlerted {
		t.Fatalf("outcome = %s, want alerted", got)
	}
	if len(e.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(e.alerts))
	}
	a := e.alerts[0]
	if a.ChatID != 7 || a.Token != domain.TokenSOL || a.Transfer.Recipient != recipient {
		t.Errorf("unexpected alert %+v", a)
	}
	if !a.Amount.Equal(decimal.RequireFromString("0.999995")) {
		t.Errorf("Amount = %s, want 0.999995", a.Amount)
	}
}

func TestPipeline_Outcomes(t *testing.T) {
	usdcWallet := solWallet()
	usdcWallet.Token = domain.TokenUSDC
	usdcWallet.MinBuy, usdcWallet.MaxBuy = 10, 1000

	usdtWallet := usdcWallet
	usdtWallet.Token = domain.TokenUSDT

	bigWallet := solWallet()
	bigWallet.MinBuy, bigWallet.MaxBuy = 2.0, 5.0

	incoming := solWallet()
	incoming.Address = recipient

	tests := []struct {
		name   string
		wallet domain.Wallet
		note   domain.LogNotification
		want   Outcome
		alerts int
	}{
		{"token alert", usdcWallet, domain.LogNotification{Signature: "usdc-sig"}, OutcomeAlerted, 1},
		{"mint mismatch never alerts", usdtWallet, domain.LogNotification{Signature: "usdc-sig"}, OutcomeSuppressed, 0},
		{"native out of range", bigWallet, domain.LogNotification{Signature: "sol-sig"}, OutcomeSuppressed, 0},
		{"sol wallet sees token tx", solWallet(), domain.LogNotification{Signature: "usdc-sig"}, OutcomeKindMismatch, 0},
		{"token wallet sees sol tx", usdcWallet, domain.LogNotification{Signature: "sol-sig"}, OutcomeKindMismatch, 0},
		{"incoming skipped", incoming, domain.LogNotification{Signature: "sol-sig"}, OutcomeIncoming, 0},
		{"failed notification", solWallet(), domain.LogNotification{Signature: "sol-sig", Failed: true}, OutcomeFailedTx, 0},
		{"not confirmed", solWallet(), domain.LogNotification{Signature: "unknown"}, OutcomeNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{
				"sol-sig":  solTransfer(),
				"usdc-sig": usdcTransfer(),
			}}
			e := &mockEmitter{}
			got := newTestPipeline(f, e).Process(context.Background(), tt.wallet, 1, tt.note)
			if got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
			if len(e.alerts) != tt.alerts {
				t.Errorf("alerts = %d, want %d", len(e.alerts), tt.alerts)
			}
		})
	}
}

func TestPipeline_Dedup(t *testing.T) {
	f := &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{"sol-sig": solTransfer()}}
	e := &mockEmitter{}
	p := newTestPipeline(f, e)
	note := domain.LogNotification{Signature: "sol-sig"}

	p.Process(context.Background(), solWallet(), 1, note)
	if got := p.Process(context.Background(), solWallet(), 1, note); got != OutcomeDuplicate {
		t.Errorf("second outcome = %s, want duplicate", got)
	}
	other := solWallet()
	other.ID = "w2"
	if got := p.Process(context.Background(), other, 1, note); got != OutcomeAlerted {
		t.Errorf("another wallet must not be deduplicated, got %s", got)
	}
	if f.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", f.calls)
	}
}

func TestPipeline_RedeliveryAfterFetchFailure(t *testing.T) {
	note := domain.LogNotification{Signature: "sol-sig"}

	tests := []struct {
		name  string
		first *mockFetcher
		want  Outcome
	}{
		{"fetch error", &mockFetcher{err: errors.New("rpc down")}, OutcomeFetchError},
		{"not confirmed yet", &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{}}, OutcomeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &mockEmitter{}
			p := newTestPipeline(tt.first, e)

			if got := p.Process(context.Background(), solWallet(), 1, note); got != tt.want {
				t.Fatalf("first outcome = %s, want %s", got, tt.want)
			}

			p.cfg.Fetcher = &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{"sol-sig": solTransfer()}}
			if got := p.Process(context.Background(), solWallet(), 1, note); got != OutcomeAlerted {
				t.Errorf("redelivered outcome = %s, want alerted", got)
			}
			if got := p.Process(context.Background(), solWallet(), 1, note); got != OutcomeDuplicate {
				t.Errorf("third outcome = %s, want duplicate", got)
			}
		})
	}
}

func TestPipeline_NotFoundRetries(t *testing.T) {
	f := &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{}}
	p := NewPipeline(Config{Fetcher: f, Emitter: &mockEmitter{}, NotFoundRetries: 2, NotFoundDelay: time.Millisecond})

	if got := p.Process(context.Background(), solWallet(), 1, domain.LogNotification{Signature: "late"}); got != OutcomeNotFound {
		t.Errorf("outcome = %s, want not_found", got)
	}
	if f.calls != 3 {
		t.Errorf("fetch calls = %d, want 3", f.calls)
	}
}

func TestPipeline_ErrorsStayInside(t *testing.T) {
	note := domain.LogNotification{Signature: "sol-sig"}

	f := &mockFetcher{err: errors.New("rpc down")}
	if got := newTestPipeline(f, &mockEmitter{}).Process(context.Background(), solWallet(), 1, note); got != OutcomeFetchError {
		t.Errorf("outcome = %s, want fetch_error", got)
	}

	f = &mockFetcher{panic: true}
	if got := newTestPipeline(f, &mockEmitter{}).Process(context.Background(), solWallet(), 1, note); got != OutcomePanic {
		t.Errorf("outcome = %s, want panic", got)
	}

	f = &mockFetcher{txs: map[string]*domain.ConfirmedTransaction{"sol-sig": solTransfer()}}
	e := &mockEmitter{err: errors.New("telegram down")}
	if got := newTestPipeline(f, e).Process(context.Background(), solWallet(), 1, note); got != OutcomeEmitError {
		t.Errorf("outcome = %s, want emit_error", got)
	}
}

func TestMemoryDeduper_Expiry(t *testing.T) {
	d := NewMemoryDeduper()
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	if first, _ := d.MarkSeen(context.Background(), "w", "s", time.Minute); !first {
		t.Error("expected first sighting")
	}
	if first, _ := d.MarkSeen(context.Background(), "w", "s", time.Minute); first {
		t.Error("expected duplicate within ttl")
	}
	now = now.Add(2 * time.Minute)
	if first, _ := d.MarkSeen(context.Background(), "w", "s", time.Minute); !first {
		t.Error("expected entry to expire")
	}
	if d.Len() != 1 {
		t.Errorf("Len() = %d, want 1", d.Len())
	}

	d.Forget(context.Background(), "w", "s")
	if first, _ := d.MarkSeen(context.Background(), "w", "s", time.Minute); !first {
		t.Error("expected Forget to release the entry")
	}
}
