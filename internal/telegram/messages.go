package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/indexing/health"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

const welcomeHeader = "<b>👋 Welcome to the Dex Monitor Bot</b>"

const commandsMessage = `📌 <b>Available Commands</b>

/start — Open home screen &amp; resume monitoring
/stop — Pause monitoring
/list — Show wallets
/adddata — Import wallets JSON
/exportdata — Export wallets
/health — Check bot + RPC status
/history — Show recent alerts
/commands — Show this menu`

// Formatter renders alerts and screens. BotName is used for deep links.
type Formatter struct {
	BotName string
}

var _ emitter.Formatter = (*Formatter)(nil)

// FormatAlert renders a native or token transfer alert.
func (f *Formatter) FormatAlert(a *domain.Alert) emitter.Message {
	if a.Transfer.Kind == domain.TransferKindNative {
		return emitter.Message{Text: nativeTransferMessage(a)}
	}
	return emitter.Message{Text: tokenTransferMessage(a)}
}

// Home renders the wallet overview.
func (f *Formatter) Home(wallets []domain.Wallet) string {
	var b strings.Builder
	b.WriteString(welcomeHeader + "\n\n")
	if len(wallets) == 0 {
		b.WriteString("<i>No wallets currently monitored</i>\n")
		return b.String()
	}

	b.WriteString("<b>📊 Monitored Wallets:</b>\n")
	for i, w := range wallets {
		fmt.Fprintf(&b, "\n%d. <a href=\"https://t.me/%s?start=w_%s\">%s</a> %s\n├ Address: <code>%s</code>\n",
			i+1, f.BotName, w.ID, html.EscapeString(w.Label), statusDot(w.Active), shortAddress(w.Address))
	}
	fmt.Fprintf(&b, "\n<i>Total Wallets: %d</i>", len(wallets))
	return b.String()
}

// WalletDetails renders one wallet with its settings.
func (f *Formatter) WalletDetails(w domain.Wallet) string {
	return fmt.Sprintf(`%s

<b>📊 Monitored Wallet:</b>
%s %s
├ Address: <code>%s</code>
├ Token: %s
└ Limits: Min %s - Max %s`,
		welcomeHeader, html.EscapeString(w.Label), statusDot(w.Active), w.Address, w.Token,
		formatFloat(w.MinBuy), formatFloat(w.MaxBuy))
}

// WalletList renders the /list output.
func (f *Formatter) WalletList(wallets []domain.Wallet) string {
	var b strings.Builder
	b.WriteString("<b>📋 Wallets:</b>\n\n")
	for i, w := range wallets {
		state := "🔴 Inactive"
		if w.Active {
			state = "🟢 Active"
		}
		fmt.Fprintf(&b, "%d. <b>%s</b>\n<code>%s</code>\n%s\n\n", i+1, html.EscapeString(w.Label), w.Address, state)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Health renders the /health output.
func (f *Formatter) Health(r health.Report) string {
	monitoring := "🟢 ON"
	if r.Monitoring == health.MonitoringPaused {
		monitoring = "🔴 OFF"
	}
	status := "🟢 Running"
	if r.Status == health.StatusDegraded {
		status = "🟡 Degraded"
	}
	return fmt.Sprintf(`🤖 <b>DexNotis Health</b>
<b>Status:</b> %s
<b>Monitoring:</b> %s
<b>Subscriptions:</b> %d
<b>Latency:</b> %dms`, status, monitoring, r.Subscriptions, r.RPCLatencyMs)
}

// History renders recent alerts, newest first.
func (f *Formatter) History(records []*storage.AlertRecord) string {
	if len(records) == 0 {
		return "📜 No alerts recorded yet."
	}
	var b strings.Builder
	b.WriteString("<b>📜 Recent Alerts:</b>\n")
	for _, r := range records {
		fmt.Fprintf(&b, "\n%s <b>%s</b> %s %s → <code>%s</code>\n<a href=\"%s\">View Transaction ↗️</a>\n",
			r.DetectedAt.UTC().Format("01-02 15:04"), html.EscapeString(r.WalletLabel),
			r.Amount.String(), r.Token, shortAddress(r.Recipient), domain.ExplorerTxURL(r.Signature))
	}
	return b.String()
}

func nativeTransferMessage(a *domain.Alert) string {
	return fmt.Sprintf(`<b>💰 Native SOL Transfer Detected</b>

<b>From:</b> <code>%s</code>
<b>Amount:</b> <code>%s SOL</code>
<b>To:</b> <a href="%s">%s</a>

<a href="%s">View Transaction ↗️</a>`,
		html.EscapeString(a.Wallet.Label), a.Amount.StringFixed(5),
		domain.ExplorerAccountURL(a.Transfer.Recipient), a.Transfer.Recipient,
		domain.ExplorerTxURL(a.Signature))
}

func tokenTransferMessage(a *domain.Alert) string {
	return fmt.Sprintf(`<b>🔄 Token Transfer Detected</b>

<b>From:</b> <code>%s</code>
<b>Token:</b> %s
<b>Amount:</b> <code>%s</code>
<b>Mint:</b> <code>%s</code>
<b>To:</b> <a href="%s">%s</a>

<a href="%s">View Transaction ↗️</a>`,
		html.EscapeString(a.Wallet.Label), a.Token, a.Amount.StringFixed(4), a.Transfer.Mint,
		domain.ExplorerAccountURL(a.Transfer.Recipient), a.Transfer.Recipient,
		domain.ExplorerTxURL(a.Signature))
}

func statusDot(active bool) string {
	if active {
		return "🟢"
	}
	return "⚫️"
}

// shortAddress keeps the first and last four characters.
func shortAddress(addr string) string {
	if len(addr) < 8 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
