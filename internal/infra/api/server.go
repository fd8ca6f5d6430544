package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/infra/i18n"
	"okpay-settlement/internal/infra/logging"
	"okpay-settlement/internal/infra/metrics"
	"okpay-settlement/internal/usecase"
)

// CheckoutLinker builds the payer-facing checkout link of an instruction.
type CheckoutLinker interface {
	CheckoutURL(instructionID string) (string, error)
}

// Options tunes the HTTP surface. Zero values fall back to defaults.
type Options struct {
	CallbackPath     string
	RequestTimeout   time.Duration
	CheckoutLimit    int
	CheckoutWindow   time.Duration
	MetricsHandler   http.Handler
	MaxFormBodyBytes int64
	Messages         *i18n.Catalog // checkout page texts; embedded en and ru when nil
}

// Server exposes the OKPAY webhook, the payer checkout redirect and the admin API.
type Server struct {
	ledger    usecase.LedgerUseCase
	callbacks usecase.CallbackUseCase
	links     CheckoutLinker
	auth      *AuthManager
	limiter   Limiter
	opts      Options
	log       *zerolog.Logger
}

func NewServer(
	ledger usecase.LedgerUseCase,
	callbacks usecase.CallbackUseCase,
	links CheckoutLinker,
	auth *AuthManager,
	limiter Limiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.CallbackPath == "" {
		opts.CallbackPath = "/payment/okpay/callback/{id}"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 45 * time.Second
	}
	if opts.CheckoutWindow <= 0 {
		opts.CheckoutWindow = time.Minute
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}
	if opts.MaxFormBodyBytes <= 0 {
		opts.MaxFormBodyBytes = 64 << 10
	}
	if opts.Messages == nil {
		opts.Messages = defaultMessages()
	}
	return &Server{
		ledger:    ledger,
		callbacks: callbacks,
		links:     links,
		auth:      auth,
		limiter:   limiter,
		opts:      opts,
		log:       logger,
	}
}

// Router builds the chi router with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", s.opts.MetricsHandler)

	r.Post(s.opts.CallbackPath, s.handleCallback)
	r.With(RateLimit(s.limiter, s.opts.CheckoutLimit, s.opts.CheckoutWindow, s.log)).
		Get("/payment/{id}/checkout", s.handleCheckout)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(s.auth, s.log))
		r.Post("/instructions", s.handleCreateInstruction)
		r.Get("/instructions/{id}/notifications", s.handleListNotifications)
		r.Get("/transactions/{id}", s.handleGetTransaction)
	})

	return Chain(r,
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.opts.RequestTimeout),
	)
}

// handleCallback settles one gateway notification. The gateway reads only the
// status code; the body is "OK" on success.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	ctx := logging.WithInstructionID(r.Context(), id)
	log := logging.With(ctx, s.log)

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFormBodyBytes)
	if err := r.ParseForm(); err != nil {
		metrics.ObserveWebhook(strconv.Itoa(http.StatusBadRequest), start)
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	t, err := s.callbacks.Handle(ctx, id, notificationFromForm(r.PostForm))
	code := statusFor(err)
	metrics.ObserveWebhook(strconv.Itoa(code), start)
	metrics.IncSettlement(settlementOutcome(err))

	if err != nil {
		if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable && code != http.StatusBadGateway {
			log.Error().Err(err).Msg("okpay callback failed")
		}
		http.Error(w, http.StatusText(code), code)
		return
	}
	metrics.AddPaymentRevenue(t.Currency(), t.ProcessedAmount)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCheckout opens or resumes the transaction of an instruction and sends
// the payer to the gateway.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithInstructionID(r.Context(), id)
	log := logging.With(ctx, s.log)

	instr, err := s.ledger.GetInstruction(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		s.renderPage(w, r, http.StatusNotFound, false, "checkout.not_found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("checkout: load instruction failed")
		s.renderPage(w, r, http.StatusInternalServerError, false, "checkout.unavailable")
		return
	}

	res, err := s.ledger.ApproveAndDeposit(ctx, id, instr.Amount)
	switch {
	case errors.Is(err, domain.ErrInvalidState):
		s.renderPage(w, r, http.StatusOK, true, "checkout.already_completed")
		return
	case errors.Is(err, domain.ErrConfiguration):
		// Merchant setup is broken; the payer cannot fix it.
		log.Error().Err(err).Msg("checkout: payment configuration error, operator action needed")
		metrics.IncSettlement("error")
		s.renderPage(w, r, http.StatusInternalServerError, false, "checkout.unavailable")
		return
	case err != nil:
		log.Error().Err(err).Msg("checkout failed")
		metrics.IncSettlement("error")
		s.renderPage(w, r, statusFor(err), false, "checkout.unavailable")
		return
	}

	if ar, ok := res.ActionRequired(); ok {
		metrics.IncSettlement("redirected")
		http.Redirect(w, r, ar.Action.URL, http.StatusFound)
		return
	}
	switch {
	case res.Succeeded():
		metrics.IncSettlement("deposited")
		s.renderPage(w, r, http.StatusOK, true, "checkout.received")
	case errors.Is(res.PluginErr, domain.ErrAwaitingData):
		metrics.IncSettlement("awaiting_data")
		s.renderPage(w, r, http.StatusAccepted, false, "checkout.awaiting")
	default:
		metrics.IncSettlement("failed")
		log.Warn().Err(res.PluginErr).Str("transaction_id", res.Transaction.ID).Msg("checkout: settlement failed")
		s.renderPage(w, r, http.StatusUnprocessableEntity, false, "checkout.failed")
	}
}

func (s *Server) handleCreateInstruction(w http.ResponseWriter, r *http.Request) {
	var req createInstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentSystem == "" {
		req.PaymentSystem = usecase.OkPayPluginName
	}
	instr, err := s.ledger.CreateInstruction(r.Context(), req.Amount, req.Currency, req.PaymentSystem, req.ExtendedData)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrPluginNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("create instruction failed")
		writeError(w, http.StatusInternalServerError, "failed to create instruction")
		return
	}
	link := ""
	if s.links != nil {
		if link, err = s.links.CheckoutURL(instr.ID); err != nil {
			s.log.Warn().Err(err).Str("instruction_id", instr.ID).Msg("checkout url unavailable")
		}
	}
	writeJSON(w, http.StatusCreated, toInstructionResponse(instr, link))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get transaction failed")
		writeError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	logs, err := s.callbacks.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.log.Error().Err(err).Msg("list notifications failed")
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Items []notificationResponse `json:"items"`
	}{Items: toNotificationResponses(logs)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

var page = template.Must(template.New("checkout").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{.Title}}</h2>
  <p>{{.Msg}}</p>
</div>
</body>
</html>`))

func defaultMessages() *i18n.Catalog {
	c, err := i18n.NewCatalog(i18n.LocalesFS, "en", "ru")
	if err != nil {
		panic(err)
	}
	return c
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, code int, ok bool, msgKey string) {
	tr := s.opts.Messages.Pick(r.Header.Get("Accept-Language"))
	title := "checkout.title_status"
	if ok {
		title = "checkout.title_ok"
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		Lang  string
		OK    bool
		Title string
		Msg   string
	}{
		Lang:  tr.Lang(),
		OK:    ok,
		Title: tr.T(title),
		Msg:   tr.T(msgKey),
	})
}
