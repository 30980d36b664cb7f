package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/vietddude/dexwatch/internal/indexing/emitter"
)

// Sender is the subset of the Bot API used by the front-end. *bot.Bot
// implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Notifier sends HTML messages with link previews disabled. Sends to the
// same chat are spaced by minInterval and a 429 is retried after the
// server-provided delay.
type Notifier struct {
	sender      Sender
	maxAttempts int
	minInterval time.Duration

	mu          sync.Mutex
	nextAllowed map[int64]time.Time
}

var _ emitter.Notifier = (*Notifier)(nil)

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{
		sender:      sender,
		maxAttempts: 3,
		minInterval: 50 * time.Millisecond,
		nextAllowed: make(map[int64]time.Time),
	}
}

// Notify sends msg to chatID.
func (n *Notifier) Notify(ctx context.Context, chatID int64, msg emitter.Message) error {
	disabled := true
	params := &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               msg.Text,
		ParseMode:          models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
		ReplyMarkup:        replyMarkup(msg.Buttons),
	}

	var lastErr error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if err := n.waitTurn(ctx, chatID); err != nil {
			return err
		}

		_, err := n.sender.SendMessage(ctx, params)
		if err == nil {
			return nil
		}
		lastErr = err

		var tooMany *bot.TooManyRequestsError
		if !errors.As(err, &tooMany) {
			return fmt.Errorf("failed to send message: %w", err)
		}
		n.delay(chatID, time.Duration(tooMany.RetryAfter)*time.Second)
	}
	return fmt.Errorf("failed to send message after %d attempts: %w", n.maxAttempts, lastErr)
}

// SendDocument uploads data as a file.
func (n *Notifier) SendDocument(ctx context.Context, chatID int64, filename, caption string, data []byte) error {
	if err := n.waitTurn(ctx, chatID); err != nil {
		return err
	}
	_, err := n.sender.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(data)},
		Caption:  caption,
	})
	if err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

func (n *Notifier) waitTurn(ctx context.Context, chatID int64) error {
	n.mu.Lock()
	now := time.Now()
	at := n.nextAllowed[chatID]
	if at.Before(now) {
		at = now
	}
	n.nextAllowed[chatID] = at.Add(n.minInterval)
	n.mu.Unlock()

	wait := time.Until(at)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (n *Notifier) delay(chatID int64, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if at := time.Now().Add(d); at.After(n.nextAllowed[chatID]) {
		n.nextAllowed[chatID] = at
	}
}
