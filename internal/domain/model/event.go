package model

import "time"

const EventDeposit = "deposit"

// PaymentEvent is published to external collaborators (fulfilment, notifications).
type PaymentEvent struct {
	PluginName  string
	Transaction *FinancialTransaction
	Instruction *PaymentInstruction
	OccurredAt  time.Time
}
