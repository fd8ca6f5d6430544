package repository

import (
	"context"

	"okpay-settlement/internal/domain/model"
)

// -----------------------------
// Notifications Log
// -----------------------------

type NotificationLogRepository interface {
	// Save records a received notification.
	Save(ctx context.Context, tx Tx, l *model.NotificationLog) error
	// UpdateResult stores the handling outcome of a notification.
	UpdateResult(ctx context.Context, tx Tx, id string, status model.NotificationLogStatus, verdict, result string) error
	// ListByInstruction returns summaries (no raw data) ordered oldest first.
	ListByInstruction(ctx context.Context, tx Tx, instructionID string) ([]*model.NotificationLog, error)
}
