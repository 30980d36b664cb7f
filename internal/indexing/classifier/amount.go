package classifier

import (
	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

var (
	toleranceLow  = decimal.RequireFromString("0.9")
	toleranceHigh = decimal.RequireFromString("1.1")
)

// Candidate is a balance gain observed on a counterparty account.
type Candidate struct {
	Index int
	Gain  decimal.Decimal
}

// ToNativeDecimal converts lamports into SOL.
func ToNativeDecimal(raw int64) decimal.Decimal {
	return decimal.New(raw, -domain.NativeDecimals)
}

// Reconcile returns the first candidate, in input order, whose gain/loss
// ratio lies within [0.9, 1.1]. A zero loss never matches.
func Reconcile(loss decimal.Decimal, gains []Candidate) (int, bool) {
	return reconcile(loss, gains, false)
}

// ReconcileMagnitude is Reconcile comparing the absolute ratio.
func ReconcileMagnitude(loss decimal.Decimal, gains []Candidate) (int, bool) {
	return reconcile(loss, gains, true)
}

func reconcile(loss decimal.Decimal, gains []Candidate, magnitude bool) (int, bool) {
	if loss.IsZero() {
		return 0, false
	}
	for _, c := range gains {
		ratio := c.Gain.Div(loss)
		if magnitude {
			ratio = ratio.Abs()
		}
		if ratio.GreaterThanOrEqual(toleranceLow) && ratio.LessThanOrEqual(toleranceHigh) {
			return c.Index, true
		}
	}
	return 0, false
}
