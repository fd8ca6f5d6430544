package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
)

// DepositNotifier tells the operator chats about every accepted deposit.
type DepositNotifier struct {
	bot      adapter.TelegramBotAdapter
	adminIDs []int64
	adminURL string // optional link to the transaction in the admin API
	log      *zerolog.Logger
}

func NewDepositNotifier(bot adapter.TelegramBotAdapter, adminIDs []int64, adminURL string, logger *zerolog.Logger) *DepositNotifier {
	return &DepositNotifier{bot: bot, adminIDs: adminIDs, adminURL: strings.TrimRight(adminURL, "/"), log: logger}
}

// HandleEvent sends to every admin chat and returns the last delivery error.
func (n *DepositNotifier) HandleEvent(ctx context.Context, name string, evt model.PaymentEvent) error {
	if name != model.EventDeposit || evt.Transaction == nil {
		return nil
	}
	text := formatDeposit(evt)

	var lastErr error
	for _, id := range n.adminIDs {
		var err error
		if n.adminURL != "" {
			rows := [][]adapter.InlineButton{{{Text: "Open transaction", URL: n.adminURL + "/api/v1/transactions/" + evt.Transaction.ID}}}
			err = n.bot.SendButtons(ctx, id, text, rows)
		} else {
			err = n.bot.SendMessage(ctx, id, text)
		}
		if err != nil {
			n.log.Warn().Err(err).Int64("chat_id", id).Str("transaction_id", evt.Transaction.ID).Msg("deposit notification not delivered")
			lastErr = err
		}
	}
	return lastErr
}

func formatDeposit(evt model.PaymentEvent) string {
	t := evt.Transaction
	return fmt.Sprintf("Deposit received\nAmount: %s %s\nReference: %s\nInstruction: %s\nPlugin: %s",
		t.ProcessedAmount.StringFixed(2), t.Currency(), t.ReferenceNumber, t.InstructionID, evt.PluginName)
}
