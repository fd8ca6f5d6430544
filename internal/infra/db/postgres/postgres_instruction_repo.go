package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
)

var _ repository.PaymentInstructionRepository = (*instructionRepo)(nil)

type instructionRepo struct{ pool *pgxpool.Pool }

func NewInstructionRepo(pool *pgxpool.Pool) *instructionRepo {
	return &instructionRepo{pool: pool}
}

func (r *instructionRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentInstruction) error {
	const q = `
INSERT INTO payment_instructions (
  id, amount, currency, payment_system_name, extended_data, created_at, updated_at
) VALUES (
  $1, $2::numeric, $3, $4, $5, $6, $7
) ON CONFLICT (id) DO UPDATE SET
  amount=$2::numeric, currency=$3, payment_system_name=$4, extended_data=$5, updated_at=$7;`

	data, err := json.Marshal(p.ExtendedData.Clone())
	if err != nil {
		return fmt.Errorf("%w: extended data: %v", domain.ErrInvalidArgument, err)
	}
	_, err = execSQL(ctx, r.pool, tx, q, p.ID, p.Amount.String(), p.Currency, p.PaymentSystemName, data, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *instructionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentInstruction, error) {
	q := forUpdate(`
SELECT id, amount::text, currency, payment_system_name, extended_data, created_at, updated_at
FROM payment_instructions WHERE id=$1`, tx, "")
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var (
		p      model.PaymentInstruction
		amount string
		data   []byte
	)
	if err := row.Scan(&p.ID, &amount, &p.Currency, &p.PaymentSystemName, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if p.ExtendedData, err = decodeExtendedData(data); err != nil {
		return nil, err
	}
	return &p, nil
}

func decodeExtendedData(b []byte) (model.ExtendedData, error) {
	out := model.ExtendedData{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
