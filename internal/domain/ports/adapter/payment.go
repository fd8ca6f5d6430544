package adapter

import (
	"context"

	"okpay-settlement/internal/domain/model"
)

// OkPayGateway is the port to the OKPAY merchant API.
type OkPayGateway interface {
	Name() string
	WalletID() string
	// RedirectURL builds the URL the payer is sent to. Fails with
	// domain.ErrConfiguration when success_url or fail_url is missing.
	RedirectURL(t *model.FinancialTransaction, instr *model.PaymentInstruction, data model.ExtendedData) (string, error)
	// Verify re-posts the notification fields and returns the raw gateway reply.
	// Transport failures yield domain.ErrNetwork.
	Verify(ctx context.Context, fields model.InboundNotification) (string, error)
}

// NotificationVerifier validates an inbound notification and re-verifies it with the gateway.
type NotificationVerifier interface {
	Verify(ctx context.Context, n model.InboundNotification) (*model.CallbackResponse, error)
}

// CallbackURLGenerator builds absolute server-to-server callback URLs.
type CallbackURLGenerator interface {
	CallbackURL(instructionID string) (string, error)
}
