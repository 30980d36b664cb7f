package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

func emitterMessage(text string) emitter.Message {
	return emitter.Message{Text: text}
}

func TestFormatter_FormatAlert(t *testing.T) {
	f := &Formatter{BotName: "bot"}
	w := domain.Wallet{ID: "w1", Label: "Hot <wallet>"}

	native := f.FormatAlert(&domain.Alert{
		Wallet:    w,
		Transfer:  domain.ClassifiedTransfer{Kind: domain.TransferKindNative, Recipient: "Rcpt"},
		Token:     domain.TokenSOL,
		Amount:    decimal.RequireFromString("1.5"),
		Signature: "sig1",
	})
	for _, want := range []string{
		"Native SOL Transfer Detected",
		"<code>1.50000 SOL</code>",
		"Hot &lt;wallet&gt;",
		"https://solscan.io/account/Rcpt",
		"https://solscan.io/tx/sig1",
	} {
		if !strings.Contains(native.Text, want) {
			t.Errorf("native alert missing %q:\n%s", want, native.Text)
		}
	}

	token := f.FormatAlert(&domain.Alert{
		Wallet:    w,
		Transfer:  domain.ClassifiedTransfer{Kind: domain.TransferKindToken, Recipient: "Rcpt", Mint: domain.USDCMint},
		Token:     domain.TokenUSDC,
		Amount:    decimal.RequireFromString("12.34"),
		Signature: "sig2",
	})
	for _, want := range []string{"Token Transfer Detected", "<b>Token:</b> USDC", "<code>12.3400</code>", domain.USDCMint} {
		if !strings.Contains(token.Text, want) {
			t.Errorf("token alert missing %q:\n%s", want, token.Text)
		}
	}
}

func TestFormatter_Home(t *testing.T) {
	f := &Formatter{BotName: "dexwatch_bot"}

	if got := f.Home(nil); !strings.Contains(got, "No wallets currently monitored") {
		t.Errorf("unexpected empty home %q", got)
	}

	got := f.Home([]domain.Wallet{
		{ID: "a", Label: "One", Address: "ABCDEFGHIJKL", Active: true},
		{ID: "b", Label: "Two", Address: "xyz", Active: false},
	})
	for _, want := range []string{
		`<a href="https://t.me/dexwatch_bot?start=w_a">One</a> 🟢`,
		"<code>ABCD...IJKL</code>",
		"Two</a> ⚫️",
		"<code>xyz</code>",
		"Total Wallets: 2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("home missing %q:\n%s", want, got)
		}
	}
}

func TestFormatter_History(t *testing.T) {
	f := &Formatter{}
	got := f.History([]*storage.AlertRecord{{
		WalletLabel: "Alpha",
		Signature:   "sig",
		Token:       "SOL",
		Amount:      decimal.RequireFromString("1.5"),
		Recipient:   "RecipientAddress",
		DetectedAt:  time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC),
	}})
	for _, want := range []string{"03-04 05:06", "<b>Alpha</b> 1.5 SOL", "Reci...ress", "https://solscan.io/tx/sig"} {
		if !strings.Contains(got, want) {
			t.Errorf("history missing %q:\n%s", want, got)
		}
	}
}

func TestWalletButtons(t *testing.T) {
	rows := walletButtons("id1", true)
	if rows[0][0].Text != "Deactivate" || rows[1][1].Data != cbDelete+"id1" || rows[3][0].Data != cbChangeToken+"id1" {
		t.Errorf("unexpected buttons: %+v", rows)
	}
	if replyMarkup(nil) != nil {
		t.Error("no buttons must produce no markup")
	}
}
