//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func cloneTxn(t *model.FinancialTransaction) *model.FinancialTransaction {
	c := *t
	c.ExtendedData = t.ExtendedData.Clone()
	if t.Instruction != nil {
		instr := *t.Instruction
		instr.ExtendedData = t.Instruction.ExtendedData.Clone()
		c.Instruction = &instr
	}
	return &c
}

// snapshotter is implemented by in-memory repos so MockTxManager can roll them back.
type snapshotter interface {
	snapshot() (restore func())
}

// =============================
// Repositories
// =============================

// ---- In-memory FinancialTransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	rows  map[string]*model.FinancialTransaction
	order []string // insertion order, latest last
	saves int

	SaveErr error
	FindErr error
}

var _ repository.FinancialTransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{rows: map[string]*model.FinancialTransaction{}}
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.FinancialTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if t.ReferenceNumber != "" {
		for id, row := range m.rows {
			if id != t.ID && row.ReferenceNumber == t.ReferenceNumber {
				return domain.ErrDuplicateTransaction
			}
		}
	}
	if _, ok := m.rows[t.ID]; !ok {
		m.order = append(m.order, t.ID)
	}
	m.rows[t.ID] = cloneTxn(t)
	m.saves++
	return nil
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.FinancialTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTxn(row), nil
}

func (m *MockTransactionRepo) FindByReferenceNumber(ctx context.Context, tx repository.Tx, ref string) (*model.FinancialTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for _, row := range m.rows {
		if ref != "" && row.ReferenceNumber == ref {
			return cloneTxn(row), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) FindLatestByInstruction(ctx context.Context, tx repository.Tx, instructionID string) (*model.FinancialTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		if row := m.rows[m.order[i]]; row.InstructionID == instructionID {
			return cloneTxn(row), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTransactionRepo) CountInStateSince(ctx context.Context, tx repository.Tx, state model.TransactionState, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.State == state && row.UpdatedAt.Before(before) {
			n++
		}
	}
	return n, nil
}

// Get returns the stored copy, or nil.
func (m *MockTransactionRepo) Get(id string) *model.FinancialTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		return cloneTxn(row)
	}
	return nil
}

func (m *MockTransactionRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockTransactionRepo) snapshot() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make(map[string]*model.FinancialTransaction, len(m.rows))
	for id, row := range m.rows {
		rows[id] = cloneTxn(row)
	}
	order := append([]string(nil), m.order...)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rows, m.order = rows, order
	}
}

// ---- In-memory PaymentInstructionRepository ----

type MockInstructionRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PaymentInstruction
}

var _ repository.PaymentInstructionRepository = (*MockInstructionRepo)(nil)

func NewMockInstructionRepo() *MockInstructionRepo {
	return &MockInstructionRepo{rows: map[string]*model.PaymentInstruction{}}
}

func (m *MockInstructionRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentInstruction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	c.ExtendedData = p.ExtendedData.Clone()
	m.rows[p.ID] = &c
	return nil
}

func (m *MockInstructionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentInstruction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *p
	c.ExtendedData = p.ExtendedData.Clone()
	return &c, nil
}

// ---- In-memory NotificationLogRepository ----

type MockNotificationLogRepo struct {
	mu      sync.Mutex
	Entries map[string]*model.NotificationLog
	SaveErr error
}

var _ repository.NotificationLogRepository = (*MockNotificationLogRepo)(nil)

func NewMockNotificationLogRepo() *MockNotificationLogRepo {
	return &MockNotificationLogRepo{Entries: map[string]*model.NotificationLog{}}
}

func (m *MockNotificationLogRepo) Save(ctx context.Context, tx repository.Tx, l *model.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	c := *l
	m.Entries[l.ID] = &c
	return nil
}

func (m *MockNotificationLogRepo) UpdateResult(ctx context.Context, tx repository.Tx, id string, status model.NotificationLogStatus, verdict, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status, e.Verdict, e.Result = status, verdict, result
	e.UpdatedAt = time.Now()
	return nil
}

func (m *MockNotificationLogRepo) ListByInstruction(ctx context.Context, tx repository.Tx, instructionID string) ([]*model.NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.NotificationLog
	for _, e := range m.Entries {
		if e.InstructionID == instructionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Only returns the single entry; tests record one notification at a time.
func (m *MockNotificationLogRepo) Only() *model.NotificationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.Entries {
		return e
	}
	return nil
}

// ---- Mock TransactionManager ----

// MockTxManager runs fn directly and restores the registered repos when fn fails.
type MockTxManager struct {
	Repos      []snapshotter
	Commits    int
	Rollbacks  int
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(repos ...snapshotter) *MockTxManager {
	return &MockTxManager{Repos: repos}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	restores := make([]func(), 0, len(m.Repos))
	for _, r := range m.Repos {
		restores = append(restores, r.snapshot())
	}
	if err := fn(ctx, repository.NoTX); err != nil {
		for _, restore := range restores {
			restore()
		}
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// =============================
// Adapters
// =============================

// ---- Mock OkPayGateway ----

type MockGateway struct {
	Wallet       string
	RedirectFunc func(t *model.FinancialTransaction, instr *model.PaymentInstruction, data model.ExtendedData) (string, error)
	VerifyFunc   func(ctx context.Context, fields model.InboundNotification) (string, error)
}

var _ adapter.OkPayGateway = (*MockGateway)(nil)

func (g *MockGateway) Name() string     { return "okpay" }
func (g *MockGateway) WalletID() string { return g.Wallet }

func (g *MockGateway) RedirectURL(t *model.FinancialTransaction, instr *model.PaymentInstruction, data model.ExtendedData) (string, error) {
	if g.RedirectFunc != nil {
		return g.RedirectFunc(t, instr, data)
	}
	return "https://www.okpay.com/process.html?ok_receiver=" + g.Wallet, nil
}

func (g *MockGateway) Verify(ctx context.Context, fields model.InboundNotification) (string, error) {
	if g.VerifyFunc != nil {
		return g.VerifyFunc(ctx, fields)
	}
	return string(model.VerdictVerified), nil
}

// ---- Mock NotificationVerifier ----

type MockVerifier struct {
	Result   string
	Failures []error
	Err      error
	Calls    int
}

var _ adapter.NotificationVerifier = (*MockVerifier)(nil)

func (v *MockVerifier) Verify(ctx context.Context, n model.InboundNotification) (*model.CallbackResponse, error) {
	v.Calls++
	if v.Err != nil {
		return nil, v.Err
	}
	return &model.CallbackResponse{Result: v.Result, Failures: v.Failures, Notification: n, VerifiedAt: time.Now()}, nil
}

// ---- Mock EventDispatcher ----

type dispatched struct {
	Name  string
	Event model.PaymentEvent
}

type MockDispatcher struct {
	mu     sync.Mutex
	Events []dispatched
	Err    error
}

var _ adapter.EventDispatcher = (*MockDispatcher)(nil)

func (d *MockDispatcher) Dispatch(ctx context.Context, name string, evt model.PaymentEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Events = append(d.Events, dispatched{Name: name, Event: evt})
	return nil
}

func (d *MockDispatcher) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Events)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu       sync.Mutex
	held     map[string]string
	Acquired []string
	Released []string
	TTLs     []time.Duration
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", errors.New("locked")
	}
	tok := uuid.NewString()
	l.held[key] = tok
	l.Acquired = append(l.Acquired, key)
	l.TTLs = append(l.TTLs, ttl)
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("lock not held")
	}
	delete(l.held, key)
	l.Released = append(l.Released, key)
	return nil
}

// Hold marks key as taken by someone else.
func (l *MockLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "other"
}
