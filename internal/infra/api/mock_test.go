//go:build !integration

package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/infra/logging"
	"okpay-settlement/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// ---- fake LedgerUseCase ----

type fakeLedger struct {
	mu           sync.Mutex
	instructions map[string]*model.PaymentInstruction
	transactions map[string]*model.FinancialTransaction
	result       *usecase.Result
	err          error
	createErr    error
	calls        int
}

var _ usecase.LedgerUseCase = (*fakeLedger)(nil)

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		instructions: map[string]*model.PaymentInstruction{},
		transactions: map[string]*model.FinancialTransaction{},
	}
}

func (f *fakeLedger) CreateInstruction(ctx context.Context, amount decimal.Decimal, currency, paymentSystem string, data model.ExtendedData) (*model.PaymentInstruction, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	instr, err := model.NewPaymentInstruction("instr-new", amount, currency, paymentSystem, data)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	f.mu.Lock()
	f.instructions[instr.ID] = instr
	f.mu.Unlock()
	return instr, nil
}

func (f *fakeLedger) ApproveAndDeposit(ctx context.Context, instructionID string, amount decimal.Decimal) (*usecase.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeLedger) GetInstruction(ctx context.Context, id string) (*model.PaymentInstruction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.instructions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeLedger) GetTransaction(ctx context.Context, id string) (*model.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

// ---- fake CallbackUseCase ----

type fakeCallbacks struct {
	mu           sync.Mutex
	tx           *model.FinancialTransaction
	err          error
	history      []*model.NotificationLog
	gotID        string
	gotFields    model.InboundNotification
	gotTraceID   string
	handledCalls int
}

var _ usecase.CallbackUseCase = (*fakeCallbacks)(nil)

func (f *fakeCallbacks) Handle(ctx context.Context, instructionID string, n model.InboundNotification) (*model.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handledCalls++
	f.gotID = instructionID
	f.gotFields = n
	f.gotTraceID = logging.TraceID(ctx)
	return f.tx, f.err
}

func (f *fakeCallbacks) History(ctx context.Context, instructionID string) ([]*model.NotificationLog, error) {
	return f.history, nil
}

// ---- fake CheckoutLinker and Limiter ----

type fakeLinks struct{}

func (fakeLinks) CheckoutURL(id string) (string, error) {
	return "https://pay.test/payment/" + id + "/checkout", nil
}

type fakeLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func (l *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}
