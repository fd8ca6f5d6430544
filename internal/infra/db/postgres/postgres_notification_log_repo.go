package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
)

var _ repository.NotificationLogRepository = (*notificationLogRepo)(nil)

type notificationLogRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationLogRepo(pool *pgxpool.Pool) *notificationLogRepo {
	return &notificationLogRepo{pool: pool}
}

func (r *notificationLogRepo) Save(ctx context.Context, tx repository.Tx, l *model.NotificationLog) error {
	const q = `
INSERT INTO notification_logs (
  id, provider, instruction_id, trace_id, gateway_txn_id, data, verdict, result, status, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	data, err := json.Marshal(l.Data)
	if err != nil {
		return fmt.Errorf("%w: notification data: %v", domain.ErrInvalidArgument, err)
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		l.ID, l.Provider, l.InstructionID, l.TraceID, l.GatewayTxnID, data,
		l.Verdict, l.Result, string(l.Status), l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *notificationLogRepo) UpdateResult(ctx context.Context, tx repository.Tx, id string, status model.NotificationLogStatus, verdict, result string) error {
	const q = `
UPDATE notification_logs SET status=$2, verdict=$3, result=$4, updated_at=$5
WHERE id=$1`

	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status), verdict, result, time.Now())
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByInstruction returns the notifications of an instruction, oldest first.
func (r *notificationLogRepo) ListByInstruction(ctx context.Context, tx repository.Tx, instructionID string) ([]*model.NotificationLog, error) {
	const q = `
SELECT id, status, verdict, result, gateway_txn_id, created_at
FROM notification_logs WHERE instruction_id=$1 ORDER BY created_at`
	rows, err := queryRows(ctx, r.pool, tx, q, instructionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.NotificationLog
	for rows.Next() {
		l := &model.NotificationLog{InstructionID: instructionID}
		var status string
		if err := rows.Scan(&l.ID, &status, &l.Verdict, &l.Result, &l.GatewayTxnID, &l.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		l.Status = model.NotificationLogStatus(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
