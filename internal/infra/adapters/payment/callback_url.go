package payment

import (
	"errors"
	"net/url"
	"strings"

	"okpay-settlement/internal/domain/ports/adapter"
)

var _ adapter.CallbackURLGenerator = (*RouteURLs)(nil)

// DefaultCallbackPath is the webhook route; {id} is the payment instruction id.
const DefaultCallbackPath = "/payment/okpay/callback/{id}"

// CheckoutPath sends the payer's browser on to the gateway.
const CheckoutPath = "/payment/{id}/checkout"

// RouteURLs generates absolute webhook URLs from the public base URL.
type RouteURLs struct {
	base *url.URL
	path string
}

func NewRouteURLs(publicBaseURL, callbackPath string) (*RouteURLs, error) {
	u, err := url.Parse(strings.TrimRight(publicBaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("public base url must be absolute")
	}
	if callbackPath == "" {
		callbackPath = DefaultCallbackPath
	}
	if !strings.Contains(callbackPath, "{id}") {
		return nil, errors.New("callback path must contain {id}")
	}
	return &RouteURLs{base: u, path: callbackPath}, nil
}

func (r *RouteURLs) CallbackURL(instructionID string) (string, error) {
	return r.build(r.path, instructionID)
}

// CheckoutURL is the link handed to the payer for an instruction.
func (r *RouteURLs) CheckoutURL(instructionID string) (string, error) {
	return r.build(CheckoutPath, instructionID)
}

func (r *RouteURLs) build(pattern, instructionID string) (string, error) {
	if instructionID == "" {
		return "", errors.New("instruction id empty")
	}
	u := *r.base
	u.Path = r.base.Path + strings.Replace(pattern, "{id}", instructionID, 1)
	return u.String(), nil
}

// Path returns the route pattern for the HTTP router.
func (r *RouteURLs) Path() string { return r.path }
