package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// AlertRepo implements storage.AlertRepository using PostgreSQL.
type AlertRepo struct {
	db *DB
}

// NewAlertRepo creates a new PostgreSQL alert repository.
func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

// Save records an alert. A repeated (wallet, signature) pair is ignored.
func (r *AlertRepo) Save(ctx context.Context, record *storage.AlertRecord) error {
	query := `
		INSERT INTO alerts (wallet_id, wallet_label, chat_id, signature, kind, token, amount, sender, recipient, detected_at)
		VALUES (:wallet_id, :wallet_label, :chat_id, :signature, :kind, :token, :amount, :sender, :recipient, :detected_at)
		ON CONFLICT (wallet_id, signature) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// Recent returns the latest alerts for a chat, newest first.
func (r *AlertRepo) Recent(ctx context.Context, chatID int64, limit int) ([]*storage.AlertRecord, error) {
	query := `
		SELECT id, wallet_id, wallet_label, chat_id, signature, kind, token, amount, sender, recipient, detected_at
		FROM alerts
		WHERE chat_id = $1
		ORDER BY detected_at DESC, id DESC
		LIMIT $2
	`

	if limit <= 0 {
		limit = 10
	}

	var records []*storage.AlertRecord
	if err := r.db.SelectContext(ctx, &records, query, chatID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent alerts: %w", err)
	}
	return records, nil
}

// DeleteBefore removes alerts detected before cutoff.
func (r *AlertRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE detected_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return res.RowsAffected()
}
