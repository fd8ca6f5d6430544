// File: internal/usecase/callback_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/logging"
)

// Compile-time check
var _ CallbackUseCase = (*callbackUC)(nil)

const defaultCallbackLockTTL = time.Minute

// CallbackUseCase settles a transaction from one inbound gateway notification.
type CallbackUseCase interface {
	// Handle returns the settled transaction, or the first error that stopped settlement.
	Handle(ctx context.Context, instructionID string, n model.InboundNotification) (*model.FinancialTransaction, error)
	History(ctx context.Context, instructionID string) ([]*model.NotificationLog, error)
}

type callbackUC struct {
	verifier     adapter.NotificationVerifier
	transactions repository.FinancialTransactionRepository
	notifLogs    repository.NotificationLogRepository
	plugins      *PluginRegistry
	tm           repository.TransactionManager
	locker       adapter.Locker // optional
	lockTTL      time.Duration
	log          *zerolog.Logger
}

func NewCallbackUseCase(
	verifier adapter.NotificationVerifier,
	transactions repository.FinancialTransactionRepository,
	notifLogs repository.NotificationLogRepository,
	plugins *PluginRegistry,
	tm repository.TransactionManager,
	locker adapter.Locker,
	logger *zerolog.Logger,
) *callbackUC {
	return &callbackUC{
		verifier:     verifier,
		transactions: transactions,
		notifLogs:    notifLogs,
		plugins:      plugins,
		tm:           tm,
		locker:       locker,
		lockTTL:      defaultCallbackLockTTL,
		log:          logger,
	}
}

// WithLockTTL sets how long a gateway transaction id stays locked. Zero keeps the default.
func (u *callbackUC) WithLockTTL(d time.Duration) *callbackUC {
	if d > 0 {
		u.lockTTL = d
	}
	return u
}

func (u *callbackUC) Handle(ctx context.Context, instructionID string, n model.InboundNotification) (*model.FinancialTransaction, error) {
	defer logging.TraceDuration(u.log, "CallbackUC.Handle")()
	log := logging.With(ctx, u.log)

	entry := u.record(ctx, instructionID, n)

	res, err := u.verifier.Verify(ctx, n)
	if err != nil {
		u.finish(ctx, entry, "", err)
		return nil, err
	}

	if txnID := n[model.FieldTxnID]; txnID != "" && u.locker != nil {
		key := "okpay:txn:" + txnID
		token, err := u.locker.TryLock(ctx, key, u.lockTTL)
		if err != nil {
			err = fmt.Errorf("%w: %s", domain.ErrLocked, txnID)
			u.finish(ctx, entry, res.Result, err)
			return nil, err
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("callback unlock failed")
			}
		}()
	}

	var settled *model.FinancialTransaction
	var settleErr error
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		t, err := u.transactions.FindLatestByInstruction(ctx, tx, instructionID)
		if err != nil {
			return err
		}
		if t.Instruction == nil {
			return fmt.Errorf("%w: transaction %s loaded without instruction", domain.ErrOperationFailed, t.ID)
		}
		plugin, err := u.plugins.Get(t.Instruction.PaymentSystemName)
		if err != nil {
			return err
		}
		cp, ok := plugin.(CallbackPlugin)
		if !ok {
			return fmt.Errorf("%w: %s does not accept notifications", domain.ErrPluginNotFound, plugin.Name())
		}

		herr := cp.HandleNotification(ctx, tx, t, res)
		if herr != nil && !domain.IsSettlementFailure(herr) {
			return herr
		}
		if herr != nil {
			// Keep the gateway fields and failure codes; the transaction cannot be settled any more.
			t.State = model.TransactionStateFailed
			t.UpdatedAt = time.Now()
		}
		if err := u.transactions.Save(ctx, tx, t); err != nil {
			return err
		}
		settled = t
		settleErr = herr
		return nil
	})
	if err == nil {
		err = settleErr
	}

	u.finish(ctx, entry, res.Result, err)
	if err != nil {
		ev := log.Warn()
		if !isRejection(err) {
			ev = log.Error()
		}
		ev.Err(err).Str("instruction_id", instructionID).Str("ok_txn_id", n[model.FieldTxnID]).Str("verdict", res.Result).Msg("okpay notification not settled")
		return settled, err
	}
	log.Info().Str("instruction_id", instructionID).Str("reference_number", settled.ReferenceNumber).Msg("okpay notification settled")
	return settled, nil
}

func (u *callbackUC) History(ctx context.Context, instructionID string) ([]*model.NotificationLog, error) {
	defer logging.TraceDuration(u.log, "CallbackUC.History")()
	if u.notifLogs == nil {
		return nil, nil
	}
	return u.notifLogs.ListByInstruction(ctx, repository.NoTX, instructionID)
}

// record stores the raw notification. Logging failures never block settlement.
func (u *callbackUC) record(ctx context.Context, instructionID string, n model.InboundNotification) *model.NotificationLog {
	if u.notifLogs == nil {
		return nil
	}
	now := time.Now()
	entry := &model.NotificationLog{
		ID:            uuid.NewString(),
		Provider:      OkPayPluginName,
		InstructionID: instructionID,
		TraceID:       logging.TraceID(ctx),
		GatewayTxnID:  n[model.FieldTxnID],
		Data:          n,
		Status:        model.NotificationLogStatusReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.notifLogs.Save(ctx, repository.NoTX, entry); err != nil {
		u.log.Error().Err(err).Str("instruction_id", instructionID).Msg("failed to record okpay notification")
		return nil
	}
	return entry
}

func (u *callbackUC) finish(ctx context.Context, entry *model.NotificationLog, verdict string, err error) {
	if entry == nil {
		return
	}
	status, result := model.NotificationLogStatusHandled, "OK"
	if err != nil {
		status, result = model.NotificationLogStatusHandleFailed, err.Error()
	}
	if uerr := u.notifLogs.UpdateResult(context.WithoutCancel(ctx), repository.NoTX, entry.ID, status, verdict, result); uerr != nil {
		u.log.Error().Err(uerr).Str("notification_id", entry.ID).Msg("failed to update okpay notification log")
	}
}

// isRejection reports errors caused by the notification itself rather than by our infrastructure.
func isRejection(err error) bool {
	for _, kind := range []error{
		domain.ErrNotVerified,
		domain.ErrCallbackValidation,
		domain.ErrTransactionNotCompleted,
		domain.ErrWalletMismatch,
		domain.ErrDuplicateTransaction,
		domain.ErrUnknownStatus,
		domain.ErrNotApproved,
		domain.ErrDepositValidation,
		domain.ErrInvalidState,
		domain.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
