package payment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/infra/metrics"
)

var _ adapter.NotificationVerifier = (*CallbackVerifier)(nil)

// verifyTransport is the part of the gateway the verifier needs.
type verifyTransport interface {
	Verify(ctx context.Context, fields model.InboundNotification) (string, error)
}

// CallbackVerifier runs the two notification gates: structural validation of
// the required fields, then re-verification with the gateway. Both always run.
type CallbackVerifier struct {
	gateway verifyTransport
	log     *zerolog.Logger
}

func NewCallbackVerifier(gateway verifyTransport, logger *zerolog.Logger) *CallbackVerifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &CallbackVerifier{gateway: gateway, log: logger}
}

// Verify returns the gateway verdict with every structural failure found.
// The only error it returns is a transport failure from the gateway.
func (v *CallbackVerifier) Verify(ctx context.Context, n model.InboundNotification) (*model.CallbackResponse, error) {
	res := &model.CallbackResponse{Notification: n}
	for _, f := range model.RequiredNotificationFields {
		if !n.Has(f) {
			res.Failures = append(res.Failures, &model.MissingFieldError{Field: f})
		}
	}
	if !res.IsValid() {
		v.log.Warn().Int("failures", len(res.Failures)).Str("first", res.FirstFailure().Error()).Msg("okpay notification failed structural validation")
	}

	raw, err := v.gateway.Verify(ctx, n)
	if err != nil {
		metrics.IncNotification("none", "error")
		return nil, err
	}
	res.Result = raw
	res.VerifiedAt = time.Now()
	if res.IsValid() {
		metrics.IncNotification(string(res.Verdict()), "valid")
	} else {
		metrics.IncNotification(string(res.Verdict()), "invalid")
	}
	v.log.Debug().Str("verdict", string(res.Verdict())).Bool("valid", res.IsValid()).Msg("okpay notification verified")
	return res, nil
}
