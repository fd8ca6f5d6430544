package model

import (
	"fmt"
	"time"
)

// Notification field names sent by the gateway.
const (
	FieldTxnStatus      = "ok_txn_status"
	FieldTxnID          = "ok_txn_id"
	FieldReceiver       = "ok_receiver"
	FieldReceiverEmail  = "ok_receiver_email"
	FieldReceiverID     = "ok_receiver_id"
	FieldReceiverWallet = "ok_receiver_wallet"
	FieldTxnGross       = "ok_txn_gross"
	FieldTxnCurrency    = "ok_txn_currency"
)

// RequiredNotificationFields lists the keys every notification must carry, in check order.
var RequiredNotificationFields = []string{
	FieldTxnStatus,
	FieldTxnID,
	FieldReceiver,
	FieldReceiverEmail,
	FieldReceiverID,
	FieldReceiverWallet,
	FieldTxnGross,
	FieldTxnCurrency,
}

const TxnStatusCompleted = "completed"

// InboundNotification is the raw form body of a gateway webhook.
type InboundNotification map[string]string

func (n InboundNotification) Has(key string) bool {
	_, ok := n[key]
	return ok
}

type Verdict string

const (
	VerdictVerified Verdict = "VERIFIED"
	VerdictInvalid  Verdict = "INVALID"
	VerdictTest     Verdict = "TEST"
	VerdictUnknown  Verdict = "UNKNOWN"
)

// ParseVerdict maps a raw gateway reply to a Verdict. No trimming is applied.
func ParseVerdict(raw string) Verdict {
	switch Verdict(raw) {
	case VerdictVerified, VerdictInvalid, VerdictTest:
		return Verdict(raw)
	default:
		return VerdictUnknown
	}
}

// MissingFieldError is a structural validation failure.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("invalid response: missing field %s", e.Field)
}

// CallbackResponse is the outcome of verifying one notification.
type CallbackResponse struct {
	Result       string // untouched gateway reply
	Failures     []error
	Notification InboundNotification
	VerifiedAt   time.Time
}

func (r *CallbackResponse) Verdict() Verdict { return ParseVerdict(r.Result) }

// IsValid is true iff no structural failure was recorded, regardless of the verdict.
func (r *CallbackResponse) IsValid() bool { return len(r.Failures) == 0 }

// FirstFailure returns the primary validation failure, or nil.
func (r *CallbackResponse) FirstFailure() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return r.Failures[0]
}
