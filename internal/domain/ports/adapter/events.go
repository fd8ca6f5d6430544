package adapter

import (
	"context"

	"okpay-settlement/internal/domain/model"
)

// EventDispatcher delivers payment events to external collaborators.
type EventDispatcher interface {
	Dispatch(ctx context.Context, name string, evt model.PaymentEvent) error
}
