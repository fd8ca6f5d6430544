package api

import (
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain/model"
)

type createInstructionRequest struct {
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentSystem string            `json:"payment_system"`
	ExtendedData  map[string]string `json:"extended_data"`
}

type instructionResponse struct {
	ID            string            `json:"id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentSystem string            `json:"payment_system"`
	ExtendedData  map[string]string `json:"extended_data,omitempty"`
	CheckoutURL   string            `json:"checkout_url,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func toInstructionResponse(p *model.PaymentInstruction, checkoutURL string) instructionResponse {
	return instructionResponse{
		ID:            p.ID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaymentSystem: p.PaymentSystemName,
		ExtendedData:  p.ExtendedData,
		CheckoutURL:   checkoutURL,
		CreatedAt:     p.CreatedAt,
	}
}

type transactionResponse struct {
	ID              string            `json:"id"`
	InstructionID   string            `json:"instruction_id"`
	State           string            `json:"state"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	RequestedAmount decimal.Decimal   `json:"requested_amount"`
	ProcessedAmount decimal.Decimal   `json:"processed_amount"`
	Currency        string            `json:"currency,omitempty"`
	ResponseCode    string            `json:"response_code,omitempty"`
	ReasonCode      string            `json:"reason_code,omitempty"`
	ExtendedData    map[string]string `json:"extended_data,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func toTransactionResponse(t *model.FinancialTransaction) transactionResponse {
	return transactionResponse{
		ID:              t.ID,
		InstructionID:   t.InstructionID,
		State:           string(t.State),
		ReferenceNumber: t.ReferenceNumber,
		RequestedAmount: t.RequestedAmount,
		ProcessedAmount: t.ProcessedAmount,
		Currency:        t.Currency(),
		ResponseCode:    t.ResponseCode,
		ReasonCode:      t.ReasonCode,
		ExtendedData:    t.ExtendedData,
		UpdatedAt:       t.UpdatedAt,
	}
}

type notificationResponse struct {
	ID           string    `json:"id"`
	GatewayTxnID string    `json:"gateway_txn_id,omitempty"`
	TraceID      string    `json:"trace_id,omitempty"`
	Verdict      string    `json:"verdict,omitempty"`
	Status       string    `json:"status"`
	Result       string    `json:"result,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toNotificationResponses(logs []*model.NotificationLog) []notificationResponse {
	out := make([]notificationResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, notificationResponse{
			ID:           l.ID,
			GatewayTxnID: l.GatewayTxnID,
			TraceID:      l.TraceID,
			Verdict:      l.Verdict,
			Status:       string(l.Status),
			Result:       l.Result,
			CreatedAt:    l.CreatedAt,
		})
	}
	return out
}

// notificationFromForm keeps the first value of every posted field.
func notificationFromForm(form url.Values) model.InboundNotification {
	n := make(model.InboundNotification, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			n[k] = vs[0]
		}
	}
	return n
}

type errorResponse struct {
	Error string `json:"error"`
}
