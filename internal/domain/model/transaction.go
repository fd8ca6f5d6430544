package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionState string

const (
	TransactionStateNew       TransactionState = "new"       // created by the ledger, payer not redirected yet
	TransactionStatePending   TransactionState = "pending"   // payer redirected to the gateway; awaiting notification
	TransactionStateApproved  TransactionState = "approved"  // gateway reported a completed payment
	TransactionStateDeposited TransactionState = "deposited" // amount and currency checked; funds accepted
	TransactionStateFailed    TransactionState = "failed"    // unrecoverable settlement error
)

const (
	ResponseCodeSuccess = "success"
	ReasonCodeSuccess   = "none"
	ResponseCodeUnknown = "Unknown"
)

// FinancialTransaction is the ledger entry driven through approve and deposit.
type FinancialTransaction struct {
	ID              string
	InstructionID   string
	State           TransactionState
	ReferenceNumber string // unique once set; empty until approved
	RequestedAmount decimal.Decimal
	ProcessedAmount decimal.Decimal
	ResponseCode    string
	ReasonCode      string
	ExtendedData    ExtendedData
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Instruction is loaded alongside the transaction; it is not persisted
	// through the transaction row.
	Instruction *PaymentInstruction
}

// NewFinancialTransaction opens a NEW transaction for the full instruction amount.
func NewFinancialTransaction(id string, instr *PaymentInstruction, amount decimal.Decimal) *FinancialTransaction {
	now := time.Now()
	return &FinancialTransaction{
		ID:              id,
		InstructionID:   instr.ID,
		State:           TransactionStateNew,
		RequestedAmount: amount,
		ExtendedData:    instr.ExtendedData.Clone(),
		CreatedAt:       now,
		UpdatedAt:       now,
		Instruction:     instr,
	}
}

// Currency returns the currency of the owning instruction.
func (t *FinancialTransaction) Currency() string {
	if t.Instruction == nil {
		return ""
	}
	return t.Instruction.Currency
}

// IsOpen reports whether the transaction can still be settled.
func (t *FinancialTransaction) IsOpen() bool {
	return t.State == TransactionStateNew || t.State == TransactionStatePending
}

func (t *FinancialTransaction) Succeeded() bool {
	return t.ResponseCode == ResponseCodeSuccess && t.ReasonCode == ReasonCodeSuccess
}

// ExtendedData is the free-form bag carried across the redirect/callback boundary.
type ExtendedData map[string]string

func (d ExtendedData) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d ExtendedData) Get(key string) string { return d[key] }

// Clone returns a copy that is never nil.
func (d ExtendedData) Clone() ExtendedData {
	out := make(ExtendedData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
