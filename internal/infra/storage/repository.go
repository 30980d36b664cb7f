package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

var (
	// ErrWalletNotFound is returned when a wallet id doesn't exist
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when adding a wallet with a duplicate id
	ErrWalletExists = errors.New("wallet already exists")
)

// WalletRepository handles wallet storage. Save replaces the whole list;
// the last full write wins.
type WalletRepository interface {
	// List returns every wallet in persisted order
	List(ctx context.Context) ([]domain.Wallet, error)

	// Get retrieves a wallet by id
	Get(ctx context.Context, id string) (domain.Wallet, error)

	// Save replaces the persisted list
	Save(ctx context.Context, wallets []domain.Wallet) error

	// Add appends a wallet
	Add(ctx context.Context, wallet domain.Wallet) error

	// Update replaces the wallet with the same id
	Update(ctx context.Context, wallet domain.Wallet) error

	// Delete removes a wallet by id
	Delete(ctx context.Context, id string) error
}

// AlertRecord is one row of alert history.
type AlertRecord struct {
	ID          int64           `db:"id"`
	WalletID    string          `db:"wallet_id"`
	WalletLabel string          `db:"wallet_label"`
	ChatID      int64           `db:"chat_id"`
	Signature   string          `db:"signature"`
	Kind        string          `db:"kind"`
	Token       string          `db:"token"`
	Amount      decimal.Decimal `db:"amount"`
	Sender      string          `db:"sender"`
	Recipient   string          `db:"recipient"`
	DetectedAt  time.Time       `db:"detected_at"`
}

// AlertRepository handles alert history storage
type AlertRepository interface {
	// Save records an emitted alert
	Save(ctx context.Context, record *AlertRecord) error

	// Recent returns the latest alerts for a chat, newest first
	Recent(ctx context.Context, chatID int64, limit int) ([]*AlertRecord, error)

	// DeleteBefore removes alerts detected before cutoff
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewAlertRecord flattens an alert for storage.
func NewAlertRecord(a *domain.Alert) *AlertRecord {
	return &AlertRecord{
		WalletID:    a.Wallet.ID,
		WalletLabel: a.Wallet.Label,
		ChatID:      a.ChatID,
		Signature:   a.Signature,
		Kind:        string(a.Transfer.Kind),
		Token:       string(a.Token),
		Amount:      a.Amount,
		Sender:      a.Transfer.Sender,
		Recipient:   a.Transfer.Recipient,
		DetectedAt:  a.DetectedAt,
	}
}

// FindWallet returns the index of id in wallets or -1.
func FindWallet(wallets []domain.Wallet, id string) int {
	for i, w := range wallets {
		if w.ID == id {
			return i
		}
	}
	return -1
}
