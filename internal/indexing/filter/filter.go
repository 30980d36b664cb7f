package filter

import (
	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

// Reasons reported when an alert is suppressed. They double as metric labels.
const (
	ReasonUnconfirmed   = "unconfirmed"
	ReasonNoRecipient   = "no_recipient"
	ReasonInvalidAmount = "invalid_amount"
	ReasonUnsupported   = "unsupported_token"
	ReasonTokenMismatch = "token_mismatch"
	ReasonBelowMin      = "below_min"
	ReasonAboveMax      = "above_max"
)

// Verdict is the outcome of Evaluate.
type Verdict struct {
	Alert  bool
	Token  domain.Token
	Amount decimal.Decimal
	Reason string
}

// AlertFilter decides whether a classified transfer is alerted on.
type AlertFilter struct {
	resolver SymbolResolver
}

// New creates an AlertFilter. A nil resolver falls back to the known mints.
func New(resolver SymbolResolver) *AlertFilter {
	if resolver == nil {
		resolver = NewMintResolver(nil)
	}
	return &AlertFilter{resolver: resolver}
}

// ShouldAlert passes when token matches the wallet's configured token and
// amount lies within [MinBuy, MaxBuy].
func ShouldAlert(amount decimal.Decimal, token domain.Token, wallet domain.Wallet) bool {
	return rangeCheck(amount, token, wallet) == ""
}

// Evaluate validates the transfer, resolves its token and applies ShouldAlert.
func (f *AlertFilter) Evaluate(t *domain.ClassifiedTransfer, wallet domain.Wallet) Verdict {
	if t == nil || !t.Confirmed {
		return Verdict{Reason: ReasonUnconfirmed}
	}
	if t.Recipient == "" {
		return Verdict{Reason: ReasonNoRecipient}
	}
	if !t.Amount.IsPositive() {
		return Verdict{Reason: ReasonInvalidAmount}
	}

	token := domain.TokenSOL
	if t.Kind == domain.TransferKindToken {
		token = f.resolver.Resolve(t.Mint)
	}
	amount := t.UIAmount()

	v := Verdict{Token: token, Amount: amount}
	if v.Reason = rangeCheck(amount, token, wallet); v.Reason == "" {
		v.Alert = true
	}
	return v
}

func rangeCheck(amount decimal.Decimal, token domain.Token, wallet domain.Wallet) string {
	if !token.Supported() {
		return ReasonUnsupported
	}
	if token != wallet.Token {
		return ReasonTokenMismatch
	}
	if amount.LessThan(decimal.NewFromFloat(wallet.MinBuy)) {
		return ReasonBelowMin
	}
	if amount.GreaterThan(decimal.NewFromFloat(wallet.MaxBuy)) {
		return ReasonAboveMax
	}
	return ""
}
