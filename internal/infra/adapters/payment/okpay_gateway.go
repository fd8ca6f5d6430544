// File: internal/infra/adapters/payment/okpay_gateway.go
package payment

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/infra/metrics"
)

var _ adapter.OkPayGateway = (*OkPayGateway)(nil)

const (
	DefaultProcessURL    = "https://www.okpay.com/process.html"
	DefaultVerifyURL     = "https://www.okpay.com/ipn-verify.html"
	DefaultVerifyTimeout = 30 * time.Second

	// maxVerifyReply bounds the verification body; the gateway answers with one short word.
	maxVerifyReply = 1 << 10
)

// OkPayGateway talks to the OKPAY merchant endpoints: it builds the payer
// redirect and re-verifies webhook notifications.
type OkPayGateway struct {
	creds      model.GatewayCredentials
	router     adapter.CallbackURLGenerator
	processURL string
	verifyURL  string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
}

type Option func(*OkPayGateway)

// WithEndpoints overrides the process and verify URLs (sandbox, tests).
func WithEndpoints(processURL, verifyURL string) Option {
	return func(g *OkPayGateway) {
		if processURL != "" {
			g.processURL = processURL
		}
		if verifyURL != "" {
			g.verifyURL = verifyURL
		}
	}
}

// WithHTTPClient uses a copy of c, so later options never touch the caller's client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *OkPayGateway) {
		if c == nil {
			return
		}
		cp := *c
		g.client = &cp
	}
}

// WithInsecureSkipVerify disables certificate verification on the verify call.
// Only meant for test environments.
func WithInsecureSkipVerify(skip bool) Option {
	return func(g *OkPayGateway) {
		if !skip {
			return
		}
		base, ok := g.client.Transport.(*http.Transport)
		if !ok {
			base = http.DefaultTransport.(*http.Transport)
		}
		tr := base.Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
		g.client.Transport = tr
	}
}

// WithTimeout bounds the verify call.
func WithTimeout(d time.Duration) Option {
	return func(g *OkPayGateway) {
		if d > 0 {
			g.client.Timeout = d
		}
	}
}

// WithBreaker wraps verify calls in the given circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[string]) Option {
	return func(g *OkPayGateway) { g.breaker = cb }
}

// NewOkPayGateway builds the client. Certificates are verified unless
// WithInsecureSkipVerify(true) is passed.
func NewOkPayGateway(creds model.GatewayCredentials, router adapter.CallbackURLGenerator, opts ...Option) (*OkPayGateway, error) {
	if creds.WalletID() == "" {
		return nil, errors.New("okpay: wallet id empty")
	}
	if router == nil {
		return nil, errors.New("okpay: callback url generator required")
	}
	g := &OkPayGateway{
		creds:      creds,
		router:     router,
		processURL: DefaultProcessURL,
		verifyURL:  DefaultVerifyURL,
		client:     &http.Client{Timeout: DefaultVerifyTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	if _, err := url.Parse(g.processURL); err != nil {
		return nil, fmt.Errorf("okpay: invalid process url: %w", err)
	}
	if _, err := url.Parse(g.verifyURL); err != nil {
		return nil, fmt.Errorf("okpay: invalid verify url: %w", err)
	}
	return g, nil
}

// NewVerifyBreaker trips after repeated transport failures to the verify endpoint.
func NewVerifyBreaker(name string) *gobreaker.CircuitBreaker[string] {
	var st gobreaker.Settings
	st.Name = name
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
		return counts.Requests >= 3 && failureRatio >= 0.6
	}
	return gobreaker.NewCircuitBreaker[string](st)
}

func (g *OkPayGateway) Name() string { return "okpay" }

func (g *OkPayGateway) WalletID() string { return g.creds.WalletID() }

// RedirectURL returns the process.html URL the payer's browser is sent to.
// ok_ipn carries the server-to-server callback; ok_return_success and
// ok_return_fail carry the browser targets.
func (g *OkPayGateway) RedirectURL(t *model.FinancialTransaction, instr *model.PaymentInstruction, data model.ExtendedData) (string, error) {
	if !data.Has("success_url") {
		return "", fmt.Errorf("%w: you must configure a success_url", domain.ErrConfiguration)
	}
	if !data.Has("fail_url") {
		return "", fmt.Errorf("%w: you must configure a fail_url", domain.ErrConfiguration)
	}
	callback, err := g.router.CallbackURL(instr.ID)
	if err != nil {
		return "", fmt.Errorf("%w: callback url: %v", domain.ErrConfiguration, err)
	}

	q := url.Values{}
	q.Set("ok_receiver", g.creds.WalletID())
	q.Set("ok_item_1_price", t.RequestedAmount.String())
	q.Set("ok_currency", instr.Currency)
	q.Set("ok_item_1_name", data.Get("description"))
	q.Set("ok_ipn", callback)
	q.Set("ok_return_fail", data.Get("fail_url"))
	q.Set("ok_return_success", data.Get("success_url"))

	return g.processURL + "?" + q.Encode(), nil
}

// Verify posts ok_verify=true followed by the notification fields back to the
// gateway and returns its reply verbatim (VERIFIED, INVALID or TEST).
func (g *OkPayGateway) Verify(ctx context.Context, fields model.InboundNotification) (reply string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveVerify(start, err) }()

	body := encodeVerifyBody(fields)
	call := func() (string, error) { return g.postVerify(ctx, body) }
	if g.breaker == nil {
		return call()
	}
	out, err := g.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return out, err
}

func (g *OkPayGateway) postVerify(ctx context.Context, body string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.verifyURL, strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: verify http %d", domain.ErrNetwork, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxVerifyReply))
	if err != nil {
		return "", fmt.Errorf("%w: read verify reply: %v", domain.ErrNetwork, err)
	}
	return string(b), nil
}

// encodeVerifyBody keeps ok_verify first and sorts the rest so the body is deterministic.
func encodeVerifyBody(fields model.InboundNotification) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "ok_verify" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("ok_verify=true")
	for _, k := range keys {
		sb.WriteByte('&')
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(stripSlashes(fields[k])))
	}
	return sb.String()
}

// stripSlashes removes backslash escaping: `\x` becomes `x`, `\\` becomes `\`.
func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteByte(c)
	}
	return sb.String()
}
