package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInstruction is what the host application asks the ledger to collect.
type PaymentInstruction struct {
	ID                string
	Amount            decimal.Decimal
	Currency          string // ISO 4217, upper case
	PaymentSystemName string // plugin name, e.g. "okpay_payment"
	ExtendedData      ExtendedData
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewPaymentInstruction(id string, amount decimal.Decimal, currency, paymentSystem string, data ExtendedData) (*PaymentInstruction, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if id == "" || len(currency) != 3 || paymentSystem == "" || !amount.IsPositive() {
		return nil, ErrInvalidInstruction
	}
	now := time.Now()
	return &PaymentInstruction{
		ID:                id,
		Amount:            amount,
		Currency:          currency,
		PaymentSystemName: paymentSystem,
		ExtendedData:      data.Clone(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}
