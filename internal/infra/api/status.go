package api

import (
	"errors"
	"net/http"

	"okpay-settlement/internal/domain"
)

// statusFor maps a settlement error to the webhook reply code.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAwaitingData), errors.Is(err, domain.ErrLocked):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrNotVerified),
		errors.Is(err, domain.ErrCallbackValidation),
		errors.Is(err, domain.ErrTransactionNotCompleted),
		errors.Is(err, domain.ErrWalletMismatch),
		errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrNotApproved),
		errors.Is(err, domain.ErrDepositValidation),
		errors.Is(err, domain.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// settlementOutcome labels payment_settlements_total for a webhook result.
func settlementOutcome(err error) string {
	switch {
	case err == nil:
		return "deposited"
	case domain.IsSettlementFailure(err):
		return "failed"
	case errors.Is(err, domain.ErrAwaitingData):
		return "awaiting_data"
	case statusFor(err) == http.StatusUnprocessableEntity,
		statusFor(err) == http.StatusConflict,
		statusFor(err) == http.StatusNotFound:
		return "rejected"
	default:
		return "error"
	}
}
