package usecase

import (
	"context"
	"fmt"
	"sync"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
)

// PaymentPlugin is the settlement logic registered under a payment system name.
type PaymentPlugin interface {
	Name() string
	Processes(name string) bool
	// ApproveAndDeposit redirects NEW transactions and settles the others.
	ApproveAndDeposit(ctx context.Context, t *model.FinancialTransaction) error
	Approve(ctx context.Context, t *model.FinancialTransaction) error
	Deposit(ctx context.Context, t *model.FinancialTransaction) error
}

// CallbackPlugin is a plugin settled by asynchronous gateway notifications.
type CallbackPlugin interface {
	PaymentPlugin
	HandleNotification(ctx context.Context, tx repository.Tx, t *model.FinancialTransaction, res *model.CallbackResponse) error
}

// PluginRegistry selects plugins by payment system name.
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins []PaymentPlugin
}

func NewPluginRegistry(plugins ...PaymentPlugin) (*PluginRegistry, error) {
	r := &PluginRegistry{}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PluginRegistry) Register(p PaymentPlugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("%w: plugin %s", domain.ErrAlreadyExists, p.Name())
		}
	}
	r.plugins = append(r.plugins, p)
	return nil
}

// Get returns the first plugin that processes name.
func (r *PluginRegistry) Get(name string) (PaymentPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Processes(name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPluginNotFound, name)
}

// Names lists registered plugin names in registration order.
func (r *PluginRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p.Name())
	}
	return out
}
