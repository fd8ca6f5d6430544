// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/logging"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase is the plugin controller: it owns instructions and
// transactions and hands them to the plugin registered for the payment system.
type LedgerUseCase interface {
	CreateInstruction(ctx context.Context, amount decimal.Decimal, currency, paymentSystem string, data model.ExtendedData) (*model.PaymentInstruction, error)
	// ApproveAndDeposit finds or opens the transaction of the instruction and
	// runs the plugin. Plugin outcomes are reported in Result.PluginErr;
	// the returned error is reserved for infrastructure and configuration failures.
	ApproveAndDeposit(ctx context.Context, instructionID string, amount decimal.Decimal) (*Result, error)
	GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error)
	GetTransaction(ctx context.Context, id string) (*model.FinancialTransaction, error)
}

// Result is the outcome of one plugin invocation.
type Result struct {
	Transaction *model.FinancialTransaction
	PluginErr   error
}

func (r *Result) Succeeded() bool { return r.PluginErr == nil }

// ActionRequired returns the redirect the payer must follow, if any.
func (r *Result) ActionRequired() (*domain.ActionRequiredError, bool) {
	return domain.AsActionRequired(r.PluginErr)
}

type ledgerUC struct {
	instructions repository.PaymentInstructionRepository
	transactions repository.FinancialTransactionRepository
	plugins      *PluginRegistry
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewLedgerUseCase(
	instructions repository.PaymentInstructionRepository,
	transactions repository.FinancialTransactionRepository,
	plugins *PluginRegistry,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *ledgerUC {
	return &ledgerUC{
		instructions: instructions,
		transactions: transactions,
		plugins:      plugins,
		tm:           tm,
		log:          logger,
	}
}

func (u *ledgerUC) CreateInstruction(ctx context.Context, amount decimal.Decimal, currency, paymentSystem string, data model.ExtendedData) (*model.PaymentInstruction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.CreateInstruction")()

	if _, err := u.plugins.Get(paymentSystem); err != nil {
		return nil, err
	}
	instr, err := model.NewPaymentInstruction(uuid.NewString(), amount, currency, paymentSystem, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if err := u.instructions.Save(ctx, repository.NoTX, instr); err != nil {
		return nil, err
	}
	return instr, nil
}

func (u *ledgerUC) ApproveAndDeposit(ctx context.Context, instructionID string, amount decimal.Decimal) (*Result, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.ApproveAndDeposit")()

	var res *Result
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		instr, err := u.instructions.FindByID(ctx, tx, instructionID)
		if err != nil {
			return err
		}
		if !amount.IsPositive() || amount.GreaterThan(instr.Amount) {
			return fmt.Errorf("%w: amount %s for instruction of %s", domain.ErrInvalidArgument, amount, instr.Amount)
		}
		plugin, err := u.plugins.Get(instr.PaymentSystemName)
		if err != nil {
			return err
		}

		t, err := u.transactions.FindLatestByInstruction(ctx, tx, instr.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			t = model.NewFinancialTransaction(uuid.NewString(), instr, amount)
		case err != nil:
			return err
		case t.State == model.TransactionStateFailed:
			t = model.NewFinancialTransaction(uuid.NewString(), instr, amount)
		case t.State == model.TransactionStateDeposited:
			return fmt.Errorf("%w: instruction %s is already deposited", domain.ErrInvalidState, instr.ID)
		}
		t.Instruction = instr

		perr := plugin.ApproveAndDeposit(ctx, t)
		switch {
		case perr == nil:
		case errors.Is(perr, domain.ErrActionRequired):
		case errors.Is(perr, domain.ErrAwaitingData):
		case domain.IsSettlementFailure(perr):
			t.State = model.TransactionStateFailed
			t.UpdatedAt = time.Now()
		default:
			return perr
		}

		if err := u.transactions.Save(ctx, tx, t); err != nil {
			return err
		}
		res = &Result{Transaction: t, PluginErr: perr}
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("instruction_id", instructionID).Msg("approve and deposit failed")
		return nil, err
	}
	return res, nil
}

func (u *ledgerUC) GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.GetInstruction")()
	return u.instructions.FindByID(ctx, repository.NoTX, id)
}

func (u *ledgerUC) GetTransaction(ctx context.Context, id string) (*model.FinancialTransaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.GetTransaction")()
	return u.transactions.FindByID(ctx, repository.NoTX, id)
}
