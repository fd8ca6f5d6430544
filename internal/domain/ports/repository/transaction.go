package repository

import (
	"context"
	"time"

	"okpay-settlement/internal/domain/model"
)

// -----------------------------
// Financial transactions
// -----------------------------

type FinancialTransactionRepository interface {
	// Save inserts or updates the transaction. A reference number already held
	// by another row yields domain.ErrDuplicateTransaction.
	Save(ctx context.Context, tx Tx, t *model.FinancialTransaction) error
	// FindByID loads the transaction with its instruction. Locks the row when tx is a database transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.FinancialTransaction, error)
	// FindByReferenceNumber returns domain.ErrNotFound when no transaction holds ref.
	FindByReferenceNumber(ctx context.Context, tx Tx, ref string) (*model.FinancialTransaction, error)
	// FindLatestByInstruction returns the most recent transaction of the instruction, in any state.
	FindLatestByInstruction(ctx context.Context, tx Tx, instructionID string) (*model.FinancialTransaction, error)
	// CountInStateSince counts transactions in state whose last update is older than before.
	CountInStateSince(ctx context.Context, tx Tx, state model.TransactionState, before time.Time) (int, error)
}

// -----------------------------
// Payment instructions
// -----------------------------

type PaymentInstructionRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentInstruction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentInstruction, error)
}
