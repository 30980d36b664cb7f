package domain

import "github.com/shopspring/decimal"

// ConfirmedTransaction is the subset of a confirmed Solana transaction the
// classifier reads. Balances are index-aligned with AccountKeys.
type ConfirmedTransaction struct {
	Signature         string
	Slot              uint64
	BlockTime         int64
	AccountKeys       []string
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	// Err is the raw meta.err value, nil when the transaction succeeded.
	Err any
}

// TokenBalance is one entry of meta.preTokenBalances / meta.postTokenBalances.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	UIAmount     decimal.Decimal
	Decimals     int
}

// Failed reports whether the transaction was executed with an error.
func (tx *ConfirmedTransaction) Failed() bool {
	return tx.Err != nil
}

// AccountIndex returns the position of address among the static keys or -1.
func (tx *ConfirmedTransaction) AccountIndex(address string) int {
	for i, key := range tx.AccountKeys {
		if key == address {
			return i
		}
	}
	return -1
}

// PreTokenBalance returns the pre balance recorded for accountIndex.
func (tx *ConfirmedTransaction) PreTokenBalance(accountIndex int) (TokenBalance, bool) {
	for _, b := range tx.PreTokenBalances {
		if b.AccountIndex == accountIndex {
			return b, true
		}
	}
	return TokenBalance{}, false
}
