package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/ports/adapter"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs messages instead of sending them. Used when no token is configured.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logger}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Msg("noop telegram message")
	return ctx.Err()
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	b.log.Debug().Int64("chat_id", chatID).Str("text", text).Int("rows", len(rows)).Msg("noop telegram buttons")
	return ctx.Err()
}
