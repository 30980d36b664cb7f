package emitter

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage/memory"
)

// ===== Mocks =====

type mockNotifier struct {
	chatIDs  []int64
	messages []Message
	err      error
}

func (m *mockNotifier) Notify(ctx context.Context, chatID int64, msg Message) error {
	if m.err != nil {
		return m.err
	}
	m.chatIDs = append(m.chatIDs, chatID)
	m.messages = append(m.messages, msg)
	return nil
}

type textFormatter struct{}

func (textFormatter) FormatAlert(a *domain.Alert) Message {
	return Message{Text: a.Wallet.Label + " " + a.Amount.String()}
}

type failingEmitter struct{ closed bool }

func (f *failingEmitter) Emit(ctx context.Context, a *domain.Alert) error {
	return errors.New("boom")
}

func (f *failingEmitter) Close() error {
	f.closed = true
	return nil
}

func testAlert() *domain.Alert {
	return &domain.Alert{
		Wallet:    domain.Wallet{ID: "w1", Label: "main"},
		ChatID:    42,
		Token:     domain.TokenSOL,
		Amount:    decimal.RequireFromString("1.5"),
		Signature: "sig",
		Transfer:  domain.ClassifiedTransfer{Kind: domain.TransferKindNative, Recipient: "r"},
	}
}

// ===== Tests =====

func TestChatEmitter(t *testing.T) {
	n := &mockNotifier{}
	e := NewChatEmitter(n, textFormatter{})
	if err := e.Emit(context.Background(), testAlert()); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(n.messages) != 1 || n.chatIDs[0] != 42 || n.messages[0].Text != "main 1.5" {
		t.Errorf("unexpected delivery: %v %+v", n.chatIDs, n.messages)
	}

	n.err = errors.New("telegram down")
	if err := e.Emit(context.Background(), testAlert()); err == nil {
		t.Error("expected notifier error to propagate")
	}
}

func TestMultiEmitter_TriesAll(t *testing.T) {
	store := memory.NewAlertStore()
	failing := &failingEmitter{}
	m := NewMultiEmitter(failing, NewHistoryEmitter(store), NewLogEmitter(nil))

	if err := m.Emit(context.Background(), testAlert()); err == nil {
		t.Error("expected joined error")
	}
	recs, _ := store.Recent(context.Background(), 42, 10)
	if len(recs) != 1 || recs[0].Signature != "sig" || recs[0].Token != "SOL" {
		t.Errorf("history not recorded after failing emitter: %+v", recs)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !failing.closed {
		t.Error("expected every emitter to be closed")
	}
}
