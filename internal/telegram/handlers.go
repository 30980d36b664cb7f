package telegram

import (
	"context"
	"errors"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/core/wallet"
	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/indexing/health"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// Prompts
const (
	promptAddress  = "📥 Enter wallet address:"
	promptLabel    = "🏷️ Enter wallet name:"
	promptMin      = "🔽 Enter MIN buy amount:"
	promptMax      = "🔼 Enter MAX buy amount:"
	promptRename   = "Enter new wallet name:"
	promptEditMin  = "Enter new MIN value:"
	promptEditMax  = "Enter new MAX value:"
	promptToken    = "Enter token type (SOL/USDC/USDT):"
	promptImport   = "📥 Send JSON array. Use /exportdata for format."
	msgNotFound    = "Wallet not found"
	msgBadNumber   = "❌ Enter a non-negative number:"
	msgBadRange    = "❌ MIN must not exceed MAX. Try again:"
	msgBadAddress  = "❌ Invalid Solana address. Try again:"
	msgEmptyLabel  = "❌ Name must not be empty. Try again:"
	msgBadToken    = "❌ Unsupported token. Use SOL, USDC or USDT."
	msgInternalErr = "❌ Something went wrong. Please try again."
)

// onMessage handles commands and session input.
func (b *Bot) onMessage(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if strings.HasPrefix(text, "/") {
		cmd, arg := parseCommand(text)
		if b.runCommand(ctx, chatID, cmd, arg) {
			return
		}
	}
	b.onText(ctx, chatID, text)
}

// runCommand returns false for unknown commands.
func (b *Bot) runCommand(ctx context.Context, chatID int64, cmd, arg string) bool {
	switch cmd {
	case "start":
		b.cmdStart(ctx, chatID, arg)
	case "stop":
		b.cmdStop(ctx, chatID)
	case "list":
		b.cmdList(ctx, chatID)
	case "exportdata":
		b.cmdExport(ctx, chatID)
	case "adddata":
		b.sessions.set(chatID, session{step: stepImport})
		b.reply(ctx, chatID, promptImport, nil)
	case "health":
		b.cmdHealth(ctx, chatID)
	case "history":
		b.cmdHistory(ctx, chatID)
	case "commands":
		b.reply(ctx, chatID, commandsMessage, nil)
	default:
		return false
	}
	return true
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64, arg string) {
	b.sessions.reset(chatID)

	// Deep link from the home screen: /start w_<id>
	if action, id, ok := strings.Cut(arg, "_"); ok && action == "w" {
		b.showWallet(ctx, chatID, id)
		return
	}

	if b.wallets.Paused() {
		b.reply(ctx, chatID, "🟢 Monitoring resumed.", nil)
	}
	b.showHome(ctx, chatID)

	started, err := b.wallets.Restore(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to restore monitoring", "chat", chatID, "error", err)
	}
	b.logger.Info("Monitoring restored", "chat", chatID, "started", started)
}

func (b *Bot) cmdStop(ctx context.Context, chatID int64) {
	if b.wallets.Paused() {
		b.reply(ctx, chatID, "⛔ Already stopped.", nil)
		return
	}
	stopped := b.wallets.Pause(ctx)
	b.reply(ctx, chatID, "⛔ Stopped "+strconv.Itoa(stopped)+" wallet(s). Use /start to resume.", nil)
}

func (b *Bot) cmdList(ctx context.Context, chatID int64) {
	wallets, err := b.wallets.List(ctx)
	if err != nil {
		b.fail(ctx, chatID, "list", err)
		return
	}
	if len(wallets) == 0 {
		b.reply(ctx, chatID, "📝 No wallets saved.", nil)
		return
	}
	b.reply(ctx, chatID, b.format.WalletList(wallets), nil)
}

func (b *Bot) cmdExport(ctx context.Context, chatID int64) {
	data, err := b.wallets.Export(ctx)
	if err != nil {
		b.fail(ctx, chatID, "export", err)
		return
	}
	if err := b.notifier.SendDocument(ctx, chatID, "wallets.json", "💾 Wallet backup", data); err != nil {
		b.logger.Error("Failed to send export", "chat", chatID, "error", err)
	}
}

func (b *Bot) cmdHealth(ctx context.Context, chatID int64) {
	report := b.health.CheckHealth(ctx)
	if report.Status == health.StatusCritical {
		b.reply(ctx, chatID, "🔴 RPC Offline", nil)
		return
	}
	b.reply(ctx, chatID, b.format.Health(report), nil)
}

func (b *Bot) cmdHistory(ctx context.Context, chatID int64) {
	if b.history == nil {
		b.reply(ctx, chatID, "📜 Alert history is not enabled.", nil)
		return
	}
	records, err := b.history.Recent(ctx, chatID, b.cfg.HistoryLimit)
	if err != nil {
		b.fail(ctx, chatID, "history", err)
		return
	}
	b.reply(ctx, chatID, b.format.History(records), nil)
}

// onText advances the chat's pending flow. Text outside a flow is ignored.
func (b *Bot) onText(ctx context.Context, chatID int64, text string) {
	sess := b.sessions.get(chatID)

	switch sess.step {
	case stepImport:
		b.importWallets(ctx, chatID, text)

	case stepAddAddress:
		if err := domain.ValidateAddress(text); err != nil {
			b.reply(ctx, chatID, msgBadAddress, nil)
			return
		}
		sess.address, sess.step = text, stepAddLabel
		b.sessions.set(chatID, sess)
		b.reply(ctx, chatID, promptLabel, nil)

	case stepAddLabel:
		if text == "" {
			b.reply(ctx, chatID, msgEmptyLabel, nil)
			return
		}
		sess.label, sess.step = text, stepAddMin
		b.sessions.set(chatID, sess)
		b.reply(ctx, chatID, promptMin, nil)

	case stepAddMin:
		v, ok := parseAmount(text)
		if !ok {
			b.reply(ctx, chatID, msgBadNumber, nil)
			return
		}
		sess.minBuy, sess.step = v, stepAddMax
		b.sessions.set(chatID, sess)
		b.reply(ctx, chatID, promptMax, nil)

	case stepAddMax:
		v, ok := parseAmount(text)
		if !ok {
			b.reply(ctx, chatID, msgBadNumber, nil)
			return
		}
		_, err := b.wallets.Add(ctx, chatID, sess.address, sess.label, sess.minBuy, v)
		if errors.Is(err, domain.ErrInvalidRange) {
			b.reply(ctx, chatID, msgBadRange, nil)
			return
		}
		b.sessions.reset(chatID)
		if err != nil {
			b.fail(ctx, chatID, "add", err)
			return
		}
		b.showHome(ctx, chatID)

	case stepRename:
		if text == "" {
			b.reply(ctx, chatID, msgEmptyLabel, nil)
			return
		}
		b.sessions.reset(chatID)
		w, err := b.wallets.Rename(ctx, chatID, sess.walletID, text)
		b.afterEdit(ctx, chatID, w, err)

	case stepEditMin, stepEditMax:
		v, ok := parseAmount(text)
		if !ok {
			b.reply(ctx, chatID, msgBadNumber, nil)
			return
		}
		var w domain.Wallet
		var err error
		if sess.step == stepEditMin {
			w, err = b.wallets.SetMin(ctx, chatID, sess.walletID, v)
		} else {
			w, err = b.wallets.SetMax(ctx, chatID, sess.walletID, v)
		}
		if errors.Is(err, domain.ErrInvalidRange) {
			b.reply(ctx, chatID, msgBadRange, nil)
			return
		}
		b.sessions.reset(chatID)
		b.afterEdit(ctx, chatID, w, err)

	case stepChangeToken:
		b.sessions.reset(chatID)
		token, err := domain.ParseToken(text)
		if err != nil {
			b.reply(ctx, chatID, msgBadToken, nil)
			return
		}
		w, err := b.wallets.SetToken(ctx, chatID, sess.walletID, token)
		b.afterEdit(ctx, chatID, w, err)
	}
}

func (b *Bot) importWallets(ctx context.Context, chatID int64, text string) {
	if !strings.HasPrefix(text, "[") {
		b.reply(ctx, chatID, "❌ JSON must be an array.", nil)
		return
	}
	wallets, err := wallet.ParseWallets([]byte(text))
	if err != nil {
		b.reply(ctx, chatID, "❌ Invalid JSON. Try again.", nil)
		return
	}
	n := len(wallets)
	if _, err := b.wallets.Import(ctx, chatID, wallets); err != nil {
		b.reply(ctx, chatID, "❌ Import rejected: "+html.EscapeString(err.Error()), nil)
		return
	}
	b.sessions.reset(chatID)
	b.reply(ctx, chatID, "✅ Imported "+strconv.Itoa(n)+" wallet(s).", nil)
}

// onCallback handles inline button presses.
func (b *Bot) onCallback(ctx context.Context, api *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}
	if api != nil {
		if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
			b.logger.Debug("Failed to answer callback", "error", err)
		}
	}
	b.handleAction(ctx, chatIDOf(update), query.Data)
}

func (b *Bot) handleAction(ctx context.Context, chatID int64, data string) {
	if data == cbAddWallet {
		b.sessions.set(chatID, session{step: stepAddAddress})
		b.reply(ctx, chatID, promptAddress, nil)
		return
	}

	for _, prefix := range walletActions {
		id, ok := strings.CutPrefix(data, prefix)
		if !ok || id == "" {
			continue
		}
		switch prefix {
		case cbToggle:
			w, err := b.wallets.Toggle(ctx, chatID, id)
			b.afterEdit(ctx, chatID, w, err)
		case cbDelete:
			if _, err := b.wallets.Delete(ctx, id); err != nil {
				b.fail(ctx, chatID, "delete", err)
				return
			}
			b.showHome(ctx, chatID)
		case cbRename:
			b.prompt(ctx, chatID, id, stepRename, promptRename)
		case cbEditMin:
			b.prompt(ctx, chatID, id, stepEditMin, promptEditMin)
		case cbEditMax:
			b.prompt(ctx, chatID, id, stepEditMax, promptEditMax)
		case cbChangeToken:
			b.prompt(ctx, chatID, id, stepChangeToken, promptToken)
		}
		return
	}
	b.logger.Debug("Unknown callback", "data", data)
}

func (b *Bot) prompt(ctx context.Context, chatID int64, walletID string, st step, text string) {
	b.sessions.set(chatID, session{step: st, walletID: walletID})
	b.reply(ctx, chatID, text, nil)
}

// afterEdit shows the wallet after a change. A failed restart still
// persisted the change, so the details are shown after the error.
func (b *Bot) afterEdit(ctx context.Context, chatID int64, w domain.Wallet, err error) {
	if err != nil {
		b.fail(ctx, chatID, "edit", err)
		if w.ID == "" {
			return
		}
	}
	b.reply(ctx, chatID, b.format.WalletDetails(w), walletButtons(w.ID, w.Active))
}

func (b *Bot) showHome(ctx context.Context, chatID int64) {
	wallets, err := b.wallets.List(ctx)
	if err != nil {
		b.fail(ctx, chatID, "home", err)
		return
	}
	b.reply(ctx, chatID, b.format.Home(wallets), homeButtons())
}

func (b *Bot) showWallet(ctx context.Context, chatID int64, id string) {
	w, err := b.wallets.Get(ctx, id)
	if err != nil {
		b.fail(ctx, chatID, "details", err)
		return
	}
	b.reply(ctx, chatID, b.format.WalletDetails(w), walletButtons(w.ID, w.Active))
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, buttons [][]emitter.Button) {
	if err := b.notifier.Notify(ctx, chatID, emitter.Message{Text: text, Buttons: buttons}); err != nil {
		b.logger.Error("Failed to send reply", "chat", chatID, "error", err)
	}
}

// fail logs err and tells the user what went wrong.
func (b *Bot) fail(ctx context.Context, chatID int64, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrWalletNotFound):
		b.reply(ctx, chatID, msgNotFound, nil)
		return
	case errors.Is(err, domain.ErrInvalidRange):
		b.reply(ctx, chatID, msgBadRange, nil)
		return
	}
	b.logger.Error("Command failed", "op", op, "chat", chatID, "error", err)
	b.reply(ctx, chatID, msgInternalErr, nil)
}

// parseCommand splits "/cmd@bot arg" into "cmd" and "arg".
func parseCommand(text string) (string, string) {
	head, arg, _ := strings.Cut(text, " ")
	cmd := strings.TrimPrefix(head, "/")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
