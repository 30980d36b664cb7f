package emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/infra/storage"
)

// Emitter delivers alerts produced by the pipeline.
type Emitter interface {
	Emit(ctx context.Context, alert *domain.Alert) error
	Close() error
}

// Button is an inline button; Data is the callback payload.
type Button struct {
	Text string
	Data string
}

// Message is a chat message with optional button rows.
type Message struct {
	Text    string
	Buttons [][]Button
}

// Notifier sends a message to a chat. It is used for alerts and for
// subscription lifecycle notices.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, msg Message) error
}

// Formatter renders an alert as a chat message.
type Formatter interface {
	FormatAlert(alert *domain.Alert) Message
}

// ChatEmitter formats alerts and sends them to the wallet's chat.
type ChatEmitter struct {
	notifier  Notifier
	formatter Formatter
}

func NewChatEmitter(notifier Notifier, formatter Formatter) *ChatEmitter {
	return &ChatEmitter{notifier: notifier, formatter: formatter}
}

func (e *ChatEmitter) Emit(ctx context.Context, alert *domain.Alert) error {
	if err := e.notifier.Notify(ctx, alert.ChatID, e.formatter.FormatAlert(alert)); err != nil {
		return fmt.Errorf("failed to notify chat %d: %w", alert.ChatID, err)
	}
	return nil
}

func (e *ChatEmitter) Close() error { return nil }

// HistoryEmitter records alerts in an AlertRepository.
type HistoryEmitter struct {
	repo storage.AlertRepository
}

func NewHistoryEmitter(repo storage.AlertRepository) *HistoryEmitter {
	return &HistoryEmitter{repo: repo}
}

func (e *HistoryEmitter) Emit(ctx context.Context, alert *domain.Alert) error {
	if err := e.repo.Save(ctx, storage.NewAlertRecord(alert)); err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

func (e *HistoryEmitter) Close() error { return nil }

// LogEmitter writes alerts to the structured log.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, alert *domain.Alert) error {
	e.logger.Info("Alert",
		"wallet", alert.Wallet.Label,
		"token", alert.Token,
		"amount", alert.Amount.String(),
		"recipient", alert.Transfer.Recipient,
		"signature", alert.Signature,
	)
	return nil
}

func (e *LogEmitter) Close() error { return nil }

// MultiEmitter fans an alert out to every emitter. All emitters are tried;
// their errors are joined.
type MultiEmitter struct {
	emitters []Emitter
}

func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(ctx context.Context, alert *domain.Alert) error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Emit(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
