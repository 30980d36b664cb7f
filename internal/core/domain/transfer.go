package domain

import "github.com/shopspring/decimal"

// TransferKind distinguishes native SOL from SPL token movements.
type TransferKind string

const (
	TransferKindNative TransferKind = "native"
	TransferKindToken  TransferKind = "token"
)

// ClassifiedTransfer is produced once per notification. A transfer that is
// not Confirmed must never be alerted on.
type ClassifiedTransfer struct {
	Kind      TransferKind
	Sender    string
	Recipient string
	// Amount is in lamports (post-fee) for native transfers and in UI units
	// for token transfers.
	Amount    decimal.Decimal
	Mint      string
	Confirmed bool
}

// UIAmount returns the amount in whole units.
func (t *ClassifiedTransfer) UIAmount() decimal.Decimal {
	if t.Kind == TransferKindNative {
		return t.Amount.Shift(-NativeDecimals)
	}
	return t.Amount
}
