package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
)

var _ repository.FinancialTransactionRepository = (*transactionRepo)(nil)

const referenceNumberConstraint = "financial_transactions_reference_number_key"

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

// selectTransaction loads the transaction with its instruction.
const selectTransaction = `
SELECT t.id, t.instruction_id, t.state, t.reference_number,
       t.requested_amount::text, t.processed_amount::text,
       t.response_code, t.reason_code, t.extended_data, t.created_at, t.updated_at,
       i.id, i.amount::text, i.currency, i.payment_system_name, i.extended_data, i.created_at, i.updated_at
FROM financial_transactions t
JOIN payment_instructions i ON i.id = t.instruction_id`

func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.FinancialTransaction) error {
	const q = `
INSERT INTO financial_transactions (
  id, instruction_id, state, reference_number, requested_amount, processed_amount,
  response_code, reason_code, extended_data, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11
) ON CONFLICT (id) DO UPDATE SET
  state=$3, reference_number=$4, requested_amount=$5::numeric, processed_amount=$6::numeric,
  response_code=$7, reason_code=$8, extended_data=$9, updated_at=$11;`

	data, err := json.Marshal(t.ExtendedData.Clone())
	if err != nil {
		return fmt.Errorf("%w: extended data: %v", domain.ErrInvalidArgument, err)
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.InstructionID, string(t.State), nullIfEmpty(t.ReferenceNumber),
		t.RequestedAmount.String(), t.ProcessedAmount.String(),
		t.ResponseCode, t.ReasonCode, data, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, referenceNumberConstraint) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateTransaction, t.ReferenceNumber)
		}
		return mapWriteErr(err)
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.FinancialTransaction, error) {
	q := forUpdate(selectTransaction+` WHERE t.id=$1`, tx, "t")
	return r.findOne(ctx, tx, q, id)
}

func (r *transactionRepo) FindByReferenceNumber(ctx context.Context, tx repository.Tx, ref string) (*model.FinancialTransaction, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, tx, selectTransaction+` WHERE t.reference_number=$1`, ref)
}

func (r *transactionRepo) FindLatestByInstruction(ctx context.Context, tx repository.Tx, instructionID string) (*model.FinancialTransaction, error) {
	q := forUpdate(selectTransaction+` WHERE t.instruction_id=$1 ORDER BY t.created_at DESC LIMIT 1`, tx, "t")
	return r.findOne(ctx, tx, q, instructionID)
}

func (r *transactionRepo) CountInStateSince(ctx context.Context, tx repository.Tx, state model.TransactionState, before time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT count(*) FROM financial_transactions WHERE state=$1 AND updated_at < $2`, string(state), before)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr(err)
	}
	return n, nil
}

func (r *transactionRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg any) (*model.FinancialTransaction, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}

	var (
		t                            model.FinancialTransaction
		instr                        model.PaymentInstruction
		state                        string
		ref                          *string
		requested, processed, amount string
		txnData, instrData           []byte
	)
	if err := row.Scan(
		&t.ID, &t.InstructionID, &state, &ref,
		&requested, &processed,
		&t.ResponseCode, &t.ReasonCode, &txnData, &t.CreatedAt, &t.UpdatedAt,
		&instr.ID, &amount, &instr.Currency, &instr.PaymentSystemName, &instrData, &instr.CreatedAt, &instr.UpdatedAt,
	); err != nil {
		return nil, mapScanErr(err)
	}

	t.State = model.TransactionState(state)
	if ref != nil {
		t.ReferenceNumber = *ref
	}
	for dst, src := range map[*decimal.Decimal]string{
		&t.RequestedAmount: requested,
		&t.ProcessedAmount: processed,
		&instr.Amount:      amount,
	} {
		if *dst, err = decimal.NewFromString(src); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if t.ExtendedData, err = decodeExtendedData(txnData); err != nil {
		return nil, err
	}
	if instr.ExtendedData, err = decodeExtendedData(instrData); err != nil {
		return nil, err
	}
	t.Instruction = &instr
	return &t, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
