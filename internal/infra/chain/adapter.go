package chain

import (
	"context"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

// SubscriptionID identifies a log subscription. It stays stable across
// transport reconnects.
type SubscriptionID uint64

// LogHandler receives notifications for one subscription. Handlers are
// called from the transport's reader and must not block.
type LogHandler func(note domain.LogNotification)

// LogSubscriber streams transaction notifications for an address.
type LogSubscriber interface {
	// Subscribe registers handler for every transaction mentioning address
	Subscribe(ctx context.Context, address string, handler LogHandler) (SubscriptionID, error)

	// Unsubscribe cancels a subscription; no notifications are delivered after it returns
	Unsubscribe(ctx context.Context, id SubscriptionID) error
}

// TransactionFetcher fetches confirmed transactions.
type TransactionFetcher interface {
	// GetTransaction returns nil, nil when the transaction is not yet confirmed
	GetTransaction(ctx context.Context, signature string) (*domain.ConfirmedTransaction, error)
}
