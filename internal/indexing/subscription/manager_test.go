package subscription

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/indexing/indexer"
	"github.com/vietddude/dexwatch/internal/infra/chain"
)

// ===== Mocks =====

type fakeSubscriber struct {
	mu              sync.Mutex
	next            chain.SubscriptionID
	live            map[chain.SubscriptionID]chain.LogHandler
	byAddress       map[string][]chain.SubscriptionID
	unsubscribes    int
	failSubscribe   error
	failUnsubscribe error

	// gate holds Subscribe until closed; entered reports that a call is held
	gate    chan struct{}
	entered chan struct{}
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		live:      make(map[chain.SubscriptionID]chain.LogHandler),
		byAddress: make(map[string][]chain.SubscriptionID),
	}
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, address string, h chain.LogHandler) (chain.SubscriptionID, error) {
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubscribe != nil {
		return 0, f.failSubscribe
	}
	f.next++
	f.live[f.next] = h
	f.byAddress[address] = append(f.byAddress[address], f.next)
	return f.next, nil
}

func (f *fakeSubscriber) Unsubscribe(ctx context.Context, id chain.SubscriptionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes++
	delete(f.live, id)
	return f.failUnsubscribe
}

func (f *fakeSubscriber) setFailSubscribe(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSubscribe = err
}

func (f *fakeSubscriber) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeSubscriber) handler(id chain.SubscriptionID) chain.LogHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[id]
}

type recordingProcessor struct {
	mu      sync.Mutex
	wallets []domain.Wallet
}

func (p *recordingProcessor) Process(ctx context.Context, w domain.Wallet, chatID int64, note domain.LogNotification) indexer.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wallets = append(p.wallets, w)
	return indexer.OutcomeAlerted
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (n *recordingNotifier) Notify(ctx context.Context, chatID int64, msg emitter.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, msg.Text)
	return nil
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.texts) == 0 {
		return ""
	}
	return n.texts[len(n.texts)-1]
}

func testWallet() domain.Wallet {
	return domain.Wallet{ID: "w1", Label: "main", Address: "addr-1", MinBuy: 0.5, MaxBuy: 2, Token: domain.TokenSOL, Active: true}
}

func setup() (*Manager, *fakeSubscriber, *recordingProcessor, *recordingNotifier) {
	sub := newFakeSubscriber()
	proc := &recordingProcessor{}
	notifier := &recordingNotifier{}
	return NewManager(context.Background(), sub, proc, notifier), sub, proc, notifier
}

// ===== Tests =====

func TestManager_StartStop(t *testing.T) {
	m, sub, _, notifier := setup()
	ctx := context.Background()

	if err := m.Start(ctx, testWallet(), 1); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !m.IsActive("w1") || m.Count() != 1 || sub.liveCount() != 1 {
		t.Fatalf("expected one live subscription")
	}
	if !strings.Contains(notifier.last(), "Monitoring started for main") {
		t.Errorf("unexpected notice %q", notifier.last())
	}

	if !m.Stop(ctx, testWallet(), 1) {
		t.Error("first Stop should close the subscription")
	}
	if m.Stop(ctx, testWallet(), 1) {
		t.Error("second Stop must be a no-op")
	}
	if m.IsActive("w1") || sub.liveCount() != 0 || sub.unsubscribes != 1 {
		t.Errorf("expected no subscription, live=%d unsubscribes=%d", sub.liveCount(), sub.unsubscribes)
	}
	if !strings.Contains(notifier.last(), "Monitoring stopped for main") {
		t.Errorf("unexpected notice %q", notifier.last())
	}
}

func TestManager_StartTwiceRepairs(t *testing.T) {
	m, sub, _, _ := setup()
	ctx := context.Background()

	m.Start(ctx, testWallet(), 1)
	m.Start(ctx, testWallet(), 1)

	if m.Count() != 1 || sub.liveCount() != 1 || sub.unsubscribes != 1 {
		t.Errorf("double start must close the stale subscription: count=%d live=%d", m.Count(), sub.liveCount())
	}
}

func TestManager_RestartIfActive(t *testing.T) {
	m, sub, proc, notifier := setup()
	ctx := context.Background()

	restarted, err := m.RestartIfActive(ctx, testWallet(), 1)
	if restarted || err != nil || sub.liveCount() != 0 {
		t.Fatalf("restart of inactive wallet must be a no-op: %v %v", restarted, err)
	}

	m.Start(ctx, testWallet(), 1)
	oldID := sub.byAddress["addr-1"][0]
	oldHandler := sub.handler(oldID)

	edited := testWallet()
	edited.Label = "renamed"
	edited.Address = "addr-2"
	edited.MaxBuy = 9
	restarted, err = m.RestartIfActive(ctx, edited, 0)
	if !restarted || err != nil {
		t.Fatalf("RestartIfActive() = %v, %v", restarted, err)
	}
	if m.Count() != 1 || sub.liveCount() != 1 {
		t.Fatalf("expected exactly one subscription after edit, got %d/%d", m.Count(), sub.liveCount())
	}
	if len(sub.byAddress["addr-2"]) != 1 {
		t.Error("expected a subscription on the new address")
	}
	if !strings.Contains(notifier.last(), "Monitoring updated for renamed") {
		t.Errorf("unexpected notice %q", notifier.last())
	}
	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].ChatID != 1 || snap[0].Label != "renamed" {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	// The old handle is closed; late notifications are dropped.
	oldHandler(domain.LogNotification{Signature: "late"})
	newHandler := sub.handler(sub.byAddress["addr-2"][0])
	newHandler(domain.LogNotification{Signature: "fresh"})
	m.Wait()

	if len(proc.wallets) != 1 || proc.wallets[0].MaxBuy != 9 {
		t.Errorf("expected one pipeline run with the edited wallet, got %+v", proc.wallets)
	}
}

func TestManager_UnsubscribeErrorsAreSwallowed(t *testing.T) {
	m, sub, _, _ := setup()
	ctx := context.Background()
	m.Start(ctx, testWallet(), 1)

	sub.failUnsubscribe = errors.New("socket closed")
	if _, err := m.RestartIfActive(ctx, testWallet(), 1); err != nil {
		t.Fatalf("close failure must not block the replacement: %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestManager_StartFailure(t *testing.T) {
	m, sub, _, notifier := setup()
	sub.failSubscribe = errors.New("not connected")

	if err := m.Start(context.Background(), testWallet(), 1); err == nil {
		t.Fatal("expected error")
	}
	if m.Count() != 0 || notifier.last() != "" {
		t.Errorf("failed start must leave no subscription and send no notice")
	}
	if m.IsActive("w1") || !m.Pending("w1") {
		t.Error("failed start must be kept pending, not live")
	}
}

func TestManager_RestartRetriesAfterSubscribeFailure(t *testing.T) {
	m, sub, _, notifier := setup()
	ctx := context.Background()
	m.Start(ctx, testWallet(), 7)

	sub.setFailSubscribe(errors.New("timeout"))
	restarted, err := m.RestartIfActive(ctx, testWallet(), 0)
	if !restarted || err == nil {
		t.Fatalf("RestartIfActive() = %v, %v; want true with error", restarted, err)
	}
	if m.Count() != 0 || sub.liveCount() != 0 || !m.Pending("w1") {
		t.Fatalf("failed restart: count=%d live=%d pending=%v", m.Count(), sub.liveCount(), m.Pending("w1"))
	}

	sub.setFailSubscribe(nil)
	edited := testWallet()
	edited.MinBuy = 1
	restarted, err = m.RestartIfActive(ctx, edited, 0)
	if !restarted || err != nil {
		t.Fatalf("next edit must reopen the wallet: %v, %v", restarted, err)
	}
	if !m.IsActive("w1") || m.Pending("w1") || sub.liveCount() != 1 {
		t.Errorf("expected exactly one live subscription after retry")
	}
	if snap := m.Snapshot(); len(snap) != 1 || snap[0].ChatID != 7 {
		t.Errorf("retry must keep the original chat, got %+v", snap)
	}
	if !strings.Contains(notifier.last(), "Monitoring updated for main") {
		t.Errorf("unexpected notice %q", notifier.last())
	}
}

func TestManager_StopDropsPendingRetry(t *testing.T) {
	m, sub, _, _ := setup()
	ctx := context.Background()
	sub.setFailSubscribe(errors.New("not connected"))
	m.Start(ctx, testWallet(), 1)

	sub.setFailSubscribe(nil)
	if m.Remove(ctx, "w1") {
		t.Error("Remove of a pending wallet closes nothing")
	}
	if restarted, _ := m.RestartIfActive(ctx, testWallet(), 1); restarted || m.Pending("w1") {
		t.Error("a removed wallet must not be retried")
	}
}

func TestManager_SlowSubscribeDoesNotBlockReads(t *testing.T) {
	m, sub, _, _ := setup()
	ctx := context.Background()
	other := testWallet()
	other.ID, other.Label, other.Address = "w2", "other", "addr-9"
	m.Start(ctx, other, 1)

	sub.gate = make(chan struct{})
	sub.entered = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx, testWallet(), 1) }()
	<-sub.entered

	read := make(chan int, 1)
	go func() { read <- m.Count() }()
	select {
	case n := <-read:
		if n != 1 {
			t.Errorf("Count() = %d during slow subscribe, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Count blocked behind a slow subscribe")
	}
	if !m.IsActive("w2") {
		t.Error("other wallets must stay readable")
	}

	close(sub.gate)
	if err := <-done; err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestManager_LateNotificationsAfterStopAll(t *testing.T) {
	m, sub, proc, _ := setup()
	m.Start(context.Background(), testWallet(), 1)
	h := sub.handler(1)
	m.StopAll(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h(domain.LogNotification{Signature: "late"})
		}()
	}
	m.Wait()
	wg.Wait()
	m.Wait()

	if len(proc.wallets) != 0 {
		t.Errorf("closed handler started %d pipelines", len(proc.wallets))
	}
}

func TestManager_StopAllAndRemove(t *testing.T) {
	m, sub, _, notifier := setup()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		w := testWallet()
		w.ID, w.Label = id, id
		m.Start(ctx, w, 1)
	}
	before := len(notifier.texts)

	if !m.Remove(ctx, "a") || m.Remove(ctx, "a") {
		t.Error("Remove must close once")
	}
	if len(notifier.texts) != before {
		t.Error("Remove must not notify")
	}
	if n := m.StopAll(ctx); n != 2 {
		t.Errorf("StopAll() = %d, want 2", n)
	}
	if m.Count() != 0 || sub.liveCount() != 0 {
		t.Errorf("expected nothing live after StopAll")
	}
}

func TestManager_ConcurrentNotifications(t *testing.T) {
	m, sub, proc, _ := setup()
	m.Start(context.Background(), testWallet(), 1)
	h := sub.handler(1)

	for i := 0; i < 50; i++ {
		h(domain.LogNotification{Signature: "s"})
	}
	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipelines did not finish")
	}
	if len(proc.wallets) != 50 {
		t.Errorf("processed %d notifications, want 50", len(proc.wallets))
	}
}
