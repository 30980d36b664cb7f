package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/indexing/indexer"
	"github.com/vietddude/dexwatch/internal/indexing/metrics"
	"github.com/vietddude/dexwatch/internal/infra/chain"
)

// Processor runs the notification pipeline for one wallet.
type Processor interface {
	Process(ctx context.Context, wallet domain.Wallet, chatID int64, note domain.LogNotification) indexer.Outcome
}

// Subscription is a live log subscription for one wallet.
type Subscription struct {
	WalletID  string
	ID        chain.SubscriptionID
	Wallet    domain.Wallet
	ChatID    int64
	StartedAt time.Time

	closed atomic.Bool
}

// Info is a read-only view of a Subscription.
type Info struct {
	WalletID  string
	Label     string
	Address   string
	ChatID    int64
	StartedAt time.Time
}

// Manager owns the wallet id -> subscription map. Opening and closing for a
// wallet id are serialized by a per-wallet lock, so at most one subscription
// per wallet exists at any time. Transport calls run outside mu.
type Manager struct {
	subscriber chain.LogSubscriber
	processor  Processor
	notifier   emitter.Notifier
	logger     *slog.Logger

	// ctx outlives individual commands; notification pipelines run under it.
	ctx context.Context

	// in-flight pipelines; counted under flightMu so a closed handler can
	// never start one after Wait has observed zero
	flightMu   sync.Mutex
	flightDone *sync.Cond
	inflight   int

	mu      sync.Mutex
	subs    map[string]*Subscription
	pending map[string]pendingOpen
	locks   map[string]*sync.Mutex
}

// pendingOpen is a wallet whose subscription failed to open. The next
// restart for it retries the open.
type pendingOpen struct {
	wallet domain.Wallet
	chatID int64
}

// NewManager creates a Manager. Pipelines started by notifications run
// under ctx.
func NewManager(ctx context.Context, subscriber chain.LogSubscriber, processor Processor, notifier emitter.Notifier) *Manager {
	m := &Manager{
		subscriber: subscriber,
		processor:  processor,
		notifier:   notifier,
		logger:     slog.Default().With("component", "subscriptions"),
		ctx:        ctx,
		subs:       make(map[string]*Subscription),
		pending:    make(map[string]pendingOpen),
		locks:      make(map[string]*sync.Mutex),
	}
	m.flightDone = sync.NewCond(&m.flightMu)
	return m
}

// Start opens a subscription for wallet and delivers its alerts to chatID.
// A stale subscription for the same wallet is closed first.
func (m *Manager) Start(ctx context.Context, wallet domain.Wallet, chatID int64) error {
	unlock := m.lockWallet(wallet.ID)
	if stale := m.take(wallet.ID); stale != nil {
		m.logger.Warn("Replacing stale subscription", "wallet", wallet.Label, "subscription", stale.ID)
		m.close(ctx, stale)
	}
	err := m.open(ctx, wallet, chatID)
	unlock()
	if err != nil {
		return err
	}

	m.notify(ctx, chatID, fmt.Sprintf("🟢 Monitoring started for %s", wallet.Label))
	return nil
}

// Stop closes the wallet's subscription if any. It is idempotent and
// reports whether a subscription was closed.
func (m *Manager) Stop(ctx context.Context, wallet domain.Wallet, chatID int64) bool {
	ok := m.Remove(ctx, wallet.ID)
	m.notify(ctx, chatID, fmt.Sprintf("🔴 Monitoring stopped for %s", wallet.Label))
	return ok
}

// Remove closes the wallet's subscription without a chat notice.
func (m *Manager) Remove(ctx context.Context, walletID string) bool {
	unlock := m.lockWallet(walletID)
	defer unlock()
	sub := m.take(walletID)
	if sub == nil {
		return false
	}
	m.close(ctx, sub)
	return true
}

// RestartIfActive replaces a live subscription with one built from wallet.
// A wallet whose last open failed is retried. It is a no-op when the wallet
// is not being watched.
func (m *Manager) RestartIfActive(ctx context.Context, wallet domain.Wallet, chatID int64) (bool, error) {
	unlock := m.lockWallet(wallet.ID)

	m.mu.Lock()
	old, live := m.subs[wallet.ID]
	retry, pending := m.pending[wallet.ID]
	m.mu.Unlock()
	if !live && !pending {
		unlock()
		return false, nil
	}
	if chatID == 0 {
		if live {
			chatID = old.ChatID
		} else {
			chatID = retry.chatID
		}
	}

	if sub := m.take(wallet.ID); sub != nil {
		m.close(ctx, sub)
	}
	err := m.open(ctx, wallet, chatID)
	unlock()

	metrics.SubscriptionRestarts.Inc()
	if err != nil {
		return true, err
	}
	m.notify(ctx, chatID, fmt.Sprintf("⚡ Monitoring updated for %s", wallet.Label))
	return true, nil
}

// StopAll closes every subscription and drops pending retries. Persisted
// wallet state is untouched.
func (m *Manager) StopAll(ctx context.Context) int {
	m.mu.Lock()
	ids := make([]string, 0, len(m.subs)+len(m.pending))
	for id := range m.subs {
		ids = append(ids, id)
	}
	for id := range m.pending {
		if _, ok := m.subs[id]; !ok {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, id := range ids {
		if m.Remove(ctx, id) {
			n++
		}
	}
	return n
}

// IsActive reports whether walletID has a live subscription.
func (m *Manager) IsActive(walletID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[walletID]
	return ok
}

// Pending reports whether walletID failed to open and awaits a retry.
func (m *Manager) Pending(walletID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[walletID]
	return ok
}

// Count returns the number of live subscriptions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Snapshot returns the live subscriptions ordered by label.
func (m *Manager) Snapshot() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, Info{
			WalletID:  sub.WalletID,
			Label:     sub.Wallet.Label,
			Address:   sub.Wallet.Address,
			ChatID:    sub.ChatID,
			StartedAt: sub.StartedAt,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Wait blocks until in-flight pipelines finish.
func (m *Manager) Wait() {
	m.flightMu.Lock()
	defer m.flightMu.Unlock()
	for m.inflight > 0 {
		m.flightDone.Wait()
	}
}

func (m *Manager) lockWallet(walletID string) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[walletID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[walletID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// open subscribes wallet. On failure the wallet is kept pending so the next
// restart retries it. Callers hold the wallet lock.
func (m *Manager) open(ctx context.Context, wallet domain.Wallet, chatID int64) error {
	sub := &Subscription{
		WalletID:  wallet.ID,
		Wallet:    wallet,
		ChatID:    chatID,
		StartedAt: time.Now(),
	}
	id, err := m.subscriber.Subscribe(ctx, wallet.Address, m.handler(sub))
	if err != nil {
		m.mu.Lock()
		m.pending[wallet.ID] = pendingOpen{wallet: wallet, chatID: chatID}
		m.mu.Unlock()
		return fmt.Errorf("failed to subscribe wallet %s: %w", wallet.Label, err)
	}
	sub.ID = id

	m.mu.Lock()
	m.subs[wallet.ID] = sub
	delete(m.pending, wallet.ID)
	metrics.ActiveSubscriptions.Set(float64(len(m.subs)))
	m.mu.Unlock()

	m.logger.Info("Subscription opened", "wallet", wallet.Label, "address", wallet.Address, "subscription", id)
	return nil
}

// take marks the wallet's subscription closed and drops it and any pending
// retry from the maps. It returns nil when nothing was live. Callers hold
// the wallet lock.
func (m *Manager) take(walletID string) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, walletID)
	sub, ok := m.subs[walletID]
	if !ok {
		return nil
	}
	delete(m.subs, walletID)
	metrics.ActiveSubscriptions.Set(float64(len(m.subs)))

	m.flightMu.Lock()
	sub.closed.Store(true)
	m.flightMu.Unlock()
	return sub
}

// close unsubscribes a taken subscription, so each open is paired with
// exactly one close.
func (m *Manager) close(ctx context.Context, sub *Subscription) {
	if err := m.subscriber.Unsubscribe(ctx, sub.ID); err != nil {
		m.logger.Warn("Unsubscribe failed", "wallet", sub.Wallet.Label, "subscription", sub.ID, "error", err)
		return
	}
	m.logger.Info("Subscription closed", "wallet", sub.Wallet.Label, "subscription", sub.ID)
}

func (m *Manager) handler(sub *Subscription) chain.LogHandler {
	return func(note domain.LogNotification) {
		m.flightMu.Lock()
		if sub.closed.Load() {
			m.flightMu.Unlock()
			return
		}
		m.inflight++
		m.flightMu.Unlock()

		go func() {
			defer m.finish()
			m.processor.Process(m.ctx, sub.Wallet, sub.ChatID, note)
		}()
	}
}

func (m *Manager) finish() {
	m.flightMu.Lock()
	m.inflight--
	if m.inflight == 0 {
		m.flightDone.Broadcast()
	}
	m.flightMu.Unlock()
}

func (m *Manager) notify(ctx context.Context, chatID int64, text string) {
	if chatID == 0 || m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, chatID, emitter.Message{Text: text}); err != nil {
		m.logger.Warn("Failed to send lifecycle notice", "chat", chatID, "error", err)
	}
}
