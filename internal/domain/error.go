package domain

import (
	"errors"
	"fmt"

	"okpay-settlement/internal/domain/model"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrPluginNotFound     = errors.New("no payment plugin processes this payment system")
	ErrLocked             = errors.New("notification is being processed concurrently")
	ErrInvalidState       = errors.New("transaction is not in a state that allows this operation")

	// Settlement errors
	ErrConfiguration           = errors.New("payment configuration error")
	ErrNetwork                 = errors.New("payment gateway unreachable")
	ErrNotVerified             = errors.New("notification was not verified by the gateway")
	ErrCallbackValidation      = errors.New("invalid notification")
	ErrTransactionNotCompleted = errors.New("gateway transaction is not completed")
	ErrWalletMismatch          = errors.New("notification receiver wallet does not match")
	ErrDuplicateTransaction    = errors.New("transaction reference number already used")
	ErrAwaitingData            = errors.New("awaiting extended data from the gateway")
	ErrUnknownStatus           = errors.New("unknown payment status")
	ErrNotApproved             = errors.New("payment is not approved")
	ErrDepositValidation       = errors.New("the deposit has not passed validation")
)

// FinancialError reports a settlement failure for a specific transaction.
// errors.Is matches against Kind.
type FinancialError struct {
	Kind        error
	Msg         string
	Transaction *model.FinancialTransaction
}

func NewFinancialError(kind error, t *model.FinancialTransaction, format string, args ...any) *FinancialError {
	return &FinancialError{Kind: kind, Msg: fmt.Sprintf(format, args...), Transaction: t}
}

func (e *FinancialError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Msg
}

func (e *FinancialError) Unwrap() error { return e.Kind }

// ErrActionRequired marks ActionRequiredError values. It is a condition the
// caller must act on, not a failure.
var ErrActionRequired = errors.New("action required")

// VisitURL asks the caller to send the payer's browser to URL.
type VisitURL struct {
	URL string
}

type ActionRequiredError struct {
	Msg         string
	Action      VisitURL
	Transaction *model.FinancialTransaction
}

func (e *ActionRequiredError) Error() string { return e.Msg }

func (e *ActionRequiredError) Unwrap() error { return ErrActionRequired }

// AsActionRequired extracts an ActionRequiredError from err.
func AsActionRequired(err error) (*ActionRequiredError, bool) {
	var ar *ActionRequiredError
	if errors.As(err, &ar) {
		return ar, true
	}
	return nil, false
}

// IsSettlementFailure reports errors raised after the notification fields
// were accepted, which leave the transaction in a terminal failed state.
func IsSettlementFailure(err error) bool {
	return errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrNotApproved) ||
		errors.Is(err, ErrDepositValidation)
}

// IsRetryable reports errors the caller may retry later with the same input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrAwaitingData) ||
		errors.Is(err, ErrLocked)
}
