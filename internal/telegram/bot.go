// Package telegram is the chat front-end: commands, inline buttons,
// multi-step input flows and alert delivery.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/health"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// WalletService is the command layer behind the chat.
type WalletService interface {
	Add(ctx context.Context, chatID int64, address, label string, minBuy, maxBuy float64) (domain.Wallet, error)
	Get(ctx context.Context, id string) (domain.Wallet, error)
	List(ctx context.Context) ([]domain.Wallet, error)
	Rename(ctx context.Context, chatID int64, id, label string) (domain.Wallet, error)
	SetMin(ctx context.Context, chatID int64, id string, minBuy float64) (domain.Wallet, error)
	SetMax(ctx context.Context, chatID int64, id string, maxBuy float64) (domain.Wallet, error)
	SetToken(ctx context.Context, chatID int64, id string, token domain.Token) (domain.Wallet, error)
	Toggle(ctx context.Context, chatID int64, id string) (domain.Wallet, error)
	Delete(ctx context.Context, id string) (domain.Wallet, error)
	Import(ctx context.Context, chatID int64, wallets []domain.Wallet) (int, error)
	Restore(ctx context.Context, chatID int64) (int, error)
	Pause(ctx context.Context) int
	Paused() bool
	Export(ctx context.Context) ([]byte, error)
}

// HealthChecker reports RPC and monitoring health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) health.Report
}

// AlertHistory lists recorded alerts.
type AlertHistory interface {
	Recent(ctx context.Context, chatID int64, limit int) ([]*storage.AlertRecord, error)
}

// Config holds bot settings.
type Config struct {
	Token          string
	BotName        string
	AllowedChatIDs []int64
	HistoryLimit   int
	// ServerURL overrides the Bot API endpoint
	ServerURL string
}

// Bot wires the Bot API to the wallet service.
type Bot struct {
	api      *bot.Bot
	cfg      Config
	notifier *Notifier
	format   *Formatter
	sessions *sessions
	logger   *slog.Logger

	wallets WalletService
	health  HealthChecker
	history AlertHistory
}

// New connects to the Bot API. Call Bind before Start.
func New(cfg Config) (*Bot, error) {
	b := newBot(cfg, nil)
	opts := []bot.Option{
		bot.WithDefaultHandler(b.onMessage),
		bot.WithMiddlewares(b.allowList),
	}
	if cfg.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(cfg.ServerURL))
	}
	api, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	b.api = api
	b.notifier = NewNotifier(api)

	api.RegisterHandler(bot.HandlerTypeCallbackQueryData, cbAddWallet, bot.MatchTypeExact, b.onCallback)
	for _, prefix := range walletActions {
		api.RegisterHandler(bot.HandlerTypeCallbackQueryData, prefix, bot.MatchTypePrefix, b.onCallback)
	}
	return b, nil
}

func newBot(cfg Config, sender Sender) *Bot {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	b := &Bot{
		cfg:      cfg,
		format:   &Formatter{BotName: cfg.BotName},
		sessions: newSessions(),
		logger:   slog.Default().With("component", "telegram"),
	}
	if sender != nil {
		b.notifier = NewNotifier(sender)
	}
	return b
}

// Bind attaches the services. history may be nil.
func (b *Bot) Bind(wallets WalletService, health HealthChecker, history AlertHistory) {
	b.wallets = wallets
	b.health = health
	b.history = history
}

// Notifier returns the message sender used for alerts and notices.
func (b *Bot) Notifier() *Notifier {
	return b.notifier
}

// Formatter returns the alert formatter.
func (b *Bot) Formatter() *Formatter {
	return b.format
}

// Start publishes the command menu and long-polls until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	if _, err := b.api.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: menu}); err != nil {
		b.logger.Warn("Failed to set bot commands", "error", err)
	}
	b.logger.Info("BOT is running", "name", b.cfg.BotName)
	b.api.Start(ctx)
}

var menu = []models.BotCommand{
	{Command: "start", Description: "Open home screen & resume monitoring"},
	{Command: "stop", Description: "Pause monitoring"},
	{Command: "list", Description: "Show wallets"},
	{Command: "adddata", Description: "Import wallets JSON"},
	{Command: "exportdata", Description: "Export wallets"},
	{Command: "health", Description: "Check bot + RPC status"},
	{Command: "history", Description: "Show recent alerts"},
	{Command: "commands", Description: "Show the command list"},
}

func (b *Bot) allowList(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, api *bot.Bot, update *models.Update) {
		chatID := chatIDOf(update)
		if !b.chatAllowed(chatID) {
			b.logger.Debug("Ignoring update from chat outside allow-list", "chat", chatID)
			return
		}
		next(ctx, api, update)
	}
}

func (b *Bot) chatAllowed(chatID int64) bool {
	if len(b.cfg.AllowedChatIDs) == 0 {
		return true
	}
	for _, id := range b.cfg.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

func chatIDOf(update *models.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil:
		msg := update.CallbackQuery.Message
		if msg.Message != nil {
			return msg.Message.Chat.ID
		}
		if msg.InaccessibleMessage != nil {
			return msg.InaccessibleMessage.Chat.ID
		}
		return update.CallbackQuery.From.ID
	}
	return 0
}
