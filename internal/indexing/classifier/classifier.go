package classifier

import (
	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
)

// ClassifyNative attributes a SOL movement out of watched to a single
// counterparty. It returns nil when watched is not a static key of tx or no
// account gained an amount within tolerance of the post-fee loss.
func ClassifyNative(tx *domain.ConfirmedTransaction, watched string) *domain.ClassifiedTransfer {
	if tx == nil {
		return nil
	}
	idx := tx.AccountIndex(watched)
	if idx < 0 || idx >= len(tx.PreBalances) || idx >= len(tx.PostBalances) {
		return nil
	}

	loss := lamportDelta(tx.PreBalances[idx], tx.PostBalances[idx])
	net := loss.Sub(decimal.NewFromUint64(tx.Fee))

	gains := make([]Candidate, 0, len(tx.AccountKeys))
	for i := range tx.AccountKeys {
		if i == idx || i >= len(tx.PreBalances) || i >= len(tx.PostBalances) {
			continue
		}
		gains = append(gains, Candidate{
			Index: i,
			Gain:  lamportDelta(tx.PostBalances[i], tx.PreBalances[i]),
		})
	}

	match, ok := Reconcile(net, gains)
	if !ok {
		return nil
	}
	return &domain.ClassifiedTransfer{
		Kind:      domain.TransferKindNative,
		Sender:    watched,
		Recipient: tx.AccountKeys[match],
		Amount:    net,
		Confirmed: true,
	}
}

// ClassifySPLToken attributes a token movement out of the token account owned
// by watched. The recipient and mint come from the matched post balance.
func ClassifySPLToken(tx *domain.ConfirmedTransaction, watched string) *domain.ClassifiedTransfer {
	if tx == nil {
		return nil
	}
	senderPos := -1
	for i, b := range tx.PostTokenBalances {
		if b.Owner == watched {
			senderPos = i
			break
		}
	}
	if senderPos < 0 {
		return nil
	}

	sender := tx.PostTokenBalances[senderPos]
	loss := preUIAmount(tx, sender.AccountIndex).Sub(sender.UIAmount)

	gains := make([]Candidate, 0, len(tx.PostTokenBalances))
	for i, b := range tx.PostTokenBalances {
		if i == senderPos {
			continue
		}
		gains = append(gains, Candidate{
			Index: i,
			Gain:  b.UIAmount.Sub(preUIAmount(tx, b.AccountIndex)),
		})
	}

	match, ok := ReconcileMagnitude(loss, gains)
	if !ok {
		return nil
	}
	recipient := tx.PostTokenBalances[match]
	return &domain.ClassifiedTransfer{
		Kind:      domain.TransferKindToken,
		Sender:    watched,
		Recipient: recipientAddress(tx, recipient),
		Amount:    loss,
		Mint:      recipient.Mint,
		Confirmed: true,
	}
}

// Route picks the classification path: transactions without post token
// balances are pure native transfers.
func Route(tx *domain.ConfirmedTransaction) domain.TransferKind {
	if len(tx.PostTokenBalances) == 0 {
		return domain.TransferKindNative
	}
	return domain.TransferKindToken
}

// IsNativeSender reports whether watched is the fee payer of tx.
func IsNativeSender(tx *domain.ConfirmedTransaction, watched string) bool {
	return len(tx.AccountKeys) > 0 && tx.AccountKeys[0] == watched
}

// IsTokenSender reports whether watched owns the first post token balance.
func IsTokenSender(tx *domain.ConfirmedTransaction, watched string) bool {
	return len(tx.PostTokenBalances) > 0 && tx.PostTokenBalances[0].Owner == watched
}

// Classify runs the direction pre-check and the classifier for kind.
func Classify(tx *domain.ConfirmedTransaction, watched string, kind domain.TransferKind) *domain.ClassifiedTransfer {
	switch kind {
	case domain.TransferKindNative:
		if !IsNativeSender(tx, watched) {
			return nil
		}
		return ClassifyNative(tx, watched)
	case domain.TransferKindToken:
		if !IsTokenSender(tx, watched) {
			return nil
		}
		return ClassifySPLToken(tx, watched)
	}
	return nil
}

func lamportDelta(a, b uint64) decimal.Decimal {
	return decimal.NewFromUint64(a).Sub(decimal.NewFromUint64(b))
}

// Accounts created within the transaction have no pre balance.
func preUIAmount(tx *domain.ConfirmedTransaction, accountIndex int) decimal.Decimal {
	if b, ok := tx.PreTokenBalance(accountIndex); ok {
		return b.UIAmount
	}
	return decimal.Zero
}

func recipientAddress(tx *domain.ConfirmedTransaction, b domain.TokenBalance) string {
	if b.Owner != "" {
		return b.Owner
	}
	if b.AccountIndex >= 0 && b.AccountIndex < len(tx.AccountKeys) {
		return tx.AccountKeys[b.AccountIndex]
	}
	return ""
}
