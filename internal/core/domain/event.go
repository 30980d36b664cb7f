package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LogNotification is delivered by the log subscription for every transaction
// that mentions the watched address.
type LogNotification struct {
	Signature string
	Slot      uint64
	Failed    bool
}

// Alert is emitted when a classified transfer passes the wallet filters.
type Alert struct {
	Wallet     Wallet
	ChatID     int64
	Transfer   ClassifiedTransfer
	Token      Token
	Amount     decimal.Decimal
	Signature  string
	DetectedAt time.Time
}
