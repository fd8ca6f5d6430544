// File: internal/usecase/okpay_plugin.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/logging"
)

const (
	OkPayPluginName   = "okpay_payment"
	OkPayRefNumPrefix = "OKPAY__"
)

// Compile-time check
var _ CallbackPlugin = (*okPayPlugin)(nil)

// okPayPlugin drives an OKPAY transaction NEW -> PENDING -> APPROVED -> DEPOSITED.
type okPayPlugin struct {
	gateway      adapter.OkPayGateway
	transactions repository.FinancialTransactionRepository
	events       adapter.EventDispatcher
	log          *zerolog.Logger
}

func NewOkPayPlugin(gateway adapter.OkPayGateway, transactions repository.FinancialTransactionRepository, events adapter.EventDispatcher, logger *zerolog.Logger) *okPayPlugin {
	return &okPayPlugin{
		gateway:      gateway,
		transactions: transactions,
		events:       events,
		log:          logger,
	}
}

func (p *okPayPlugin) Name() string { return OkPayPluginName }

func (p *okPayPlugin) Processes(name string) bool { return name == p.Name() }

func (p *okPayPlugin) ApproveAndDeposit(ctx context.Context, t *model.FinancialTransaction) error {
	if t.State == model.TransactionStateNew {
		return p.Initiate(ctx, t)
	}
	if err := p.Approve(ctx, t); err != nil {
		return err
	}
	return p.Deposit(ctx, t)
}

// Initiate builds the gateway redirect for a NEW transaction and moves it to
// PENDING. On success it returns a *domain.ActionRequiredError.
func (p *okPayPlugin) Initiate(ctx context.Context, t *model.FinancialTransaction) error {
	defer logging.TraceDuration(p.log, "OkPayPlugin.Initiate")()

	if t.State != model.TransactionStateNew {
		return domain.NewFinancialError(domain.ErrInvalidState, t, "cannot redirect a %s transaction", t.State)
	}
	if t.Instruction == nil {
		return fmt.Errorf("%w: transaction %s has no instruction", domain.ErrInvalidArgument, t.ID)
	}

	u, err := p.gateway.RedirectURL(t, t.Instruction, t.ExtendedData)
	if err != nil {
		p.log.Error().Err(err).Str("transaction_id", t.ID).Msg("okpay redirect is not configured")
		return err
	}

	t.State = model.TransactionStatePending
	t.UpdatedAt = time.Now()
	return &domain.ActionRequiredError{
		Msg:         "Redirecting to OKPAY.",
		Action:      domain.VisitURL{URL: u},
		Transaction: t,
	}
}

// HandleNotification accepts a verified notification for a PENDING
// transaction and settles it. Every rejection happens before t is touched.
func (p *okPayPlugin) HandleNotification(ctx context.Context, tx repository.Tx, t *model.FinancialTransaction, res *model.CallbackResponse) error {
	defer logging.TraceDuration(p.log, "OkPayPlugin.HandleNotification")()

	if res.Verdict() != model.VerdictVerified {
		return domain.NewFinancialError(domain.ErrNotVerified, t, "gateway replied %q", res.Result)
	}
	if !res.IsValid() {
		return fmt.Errorf("%w: %w", domain.ErrCallbackValidation, res.FirstFailure())
	}

	n := res.Notification
	if status := n[model.FieldTxnStatus]; status != model.TxnStatusCompleted {
		return domain.NewFinancialError(domain.ErrTransactionNotCompleted, t, "status %s", status)
	}
	if wallet := n[model.FieldReceiverWallet]; wallet != p.gateway.WalletID() {
		return domain.NewFinancialError(domain.ErrWalletMismatch, t, "receiver wallet %s", wallet)
	}

	ref := OkPayRefNumPrefix + n[model.FieldTxnID]
	_, err := p.transactions.FindByReferenceNumber(ctx, tx, ref)
	switch {
	case err == nil:
		p.log.Warn().Str("reference_number", ref).Str("transaction_id", t.ID).Msg("okpay notification replayed")
		return domain.NewFinancialError(domain.ErrDuplicateTransaction, t, "reference number %s", ref)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return fmt.Errorf("lookup reference number: %w", err)
	}

	if t.State != model.TransactionStatePending {
		return domain.NewFinancialError(domain.ErrInvalidState, t, "notification for a %s transaction", t.State)
	}

	if t.ExtendedData == nil {
		t.ExtendedData = model.ExtendedData{}
	}
	for _, f := range model.RequiredNotificationFields {
		t.ExtendedData[f] = n[f]
	}
	t.UpdatedAt = time.Now()
	if err := p.Approve(ctx, t); err != nil {
		return err
	}
	// Persist the reference number before any event; the unique index rejects a concurrent settlement.
	if err := p.transactions.Save(ctx, tx, t); err != nil {
		return err
	}
	return p.Deposit(ctx, t)
}

// Approve reads the gateway fields stashed in the extended data.
func (p *okPayPlugin) Approve(ctx context.Context, t *model.FinancialTransaction) error {
	data := t.ExtendedData
	if !data.Has(model.FieldTxnStatus) || !data.Has(model.FieldTxnID) || !data.Has(model.FieldTxnGross) || !data.Has(model.FieldTxnCurrency) {
		return domain.NewFinancialError(domain.ErrAwaitingData, t, "")
	}

	status := data.Get(model.FieldTxnStatus)
	if status != model.TxnStatusCompleted {
		t.ResponseCode = model.ResponseCodeUnknown
		t.ReasonCode = status
		return domain.NewFinancialError(domain.ErrUnknownStatus, t, "payment status unknown: %s", status)
	}

	gross, err := decimal.NewFromString(data.Get(model.FieldTxnGross))
	if err != nil {
		return domain.NewFinancialError(domain.ErrCallbackValidation, t, "invalid %s %q", model.FieldTxnGross, data.Get(model.FieldTxnGross))
	}

	t.ReferenceNumber = OkPayRefNumPrefix + data.Get(model.FieldTxnID)
	t.ProcessedAmount = gross
	t.ResponseCode = model.ResponseCodeSuccess
	t.ReasonCode = model.ReasonCodeSuccess
	t.State = model.TransactionStateApproved
	t.UpdatedAt = time.Now()
	return nil
}

// Deposit accepts the payment only when the processed amount equals the
// requested amount exactly and the currencies match.
func (p *okPayPlugin) Deposit(ctx context.Context, t *model.FinancialTransaction) error {
	if !t.Succeeded() {
		return domain.NewFinancialError(domain.ErrNotApproved, t, "payment is not completed")
	}

	data := t.ExtendedData
	if !t.ProcessedAmount.Equal(t.RequestedAmount) || t.Currency() != data.Get(model.FieldTxnCurrency) {
		p.log.Warn().
			Str("transaction_id", t.ID).
			Str("processed", t.ProcessedAmount.String()).
			Str("requested", t.RequestedAmount.String()).
			Str("currency", data.Get(model.FieldTxnCurrency)).
			Msg("okpay deposit rejected")
		t.ResponseCode = model.ResponseCodeUnknown
		t.ReasonCode = data.Get(model.FieldTxnStatus)
		return domain.NewFinancialError(domain.ErrDepositValidation, t, "")
	}

	prev := t.State
	t.State = model.TransactionStateDeposited
	t.UpdatedAt = time.Now()
	evt := model.PaymentEvent{
		PluginName:  p.Name(),
		Transaction: t,
		Instruction: t.Instruction,
		OccurredAt:  t.UpdatedAt,
	}
	if err := p.events.Dispatch(ctx, model.EventDeposit, evt); err != nil {
		t.State = prev
		return fmt.Errorf("dispatch deposit event: %w", err)
	}
	p.log.Info().Str("transaction_id", t.ID).Str("reference_number", t.ReferenceNumber).Msg("okpay deposit accepted")
	return nil
}
