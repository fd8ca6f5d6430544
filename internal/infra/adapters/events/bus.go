package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/adapter"
	"okpay-settlement/internal/infra/worker"
)

var _ adapter.EventDispatcher = (*Bus)(nil)

// Listener reacts to a named payment event.
type Listener interface {
	HandleEvent(ctx context.Context, name string, evt model.PaymentEvent) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, name string, evt model.PaymentEvent) error

func (f ListenerFunc) HandleEvent(ctx context.Context, name string, evt model.PaymentEvent) error {
	return f(ctx, name, evt)
}

type subscription struct {
	l        Listener
	required bool
}

// Bus dispatches events synchronously in subscription order. A failing
// required listener fails the dispatch; best-effort listeners are only logged.
type Bus struct {
	mu    sync.RWMutex
	subs  map[string][]subscription
	async Submitter
	log   *zerolog.Logger
}

// Submitter queues work off the dispatching goroutine; *worker.Pool implements it.
type Submitter interface {
	Submit(task worker.Task) error
}

func NewBus(logger *zerolog.Logger) *Bus {
	return &Bus{subs: map[string][]subscription{}, log: logger}
}

// Subscribe adds a listener whose failure aborts the dispatch.
func (b *Bus) Subscribe(name string, l Listener) {
	b.add(name, subscription{l: l, required: true})
}

// RunBestEffortOn moves best-effort listeners onto s. They then see a copy of
// the event and never delay the dispatcher.
func (b *Bus) RunBestEffortOn(s Submitter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.async = s
}

// SubscribeBestEffort adds a listener whose failure is logged and ignored.
func (b *Bus) SubscribeBestEffort(name string, l Listener) {
	b.add(name, subscription{l: l})
}

func (b *Bus) add(name string, s subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], s)
}

func (b *Bus) Dispatch(ctx context.Context, name string, evt model.PaymentEvent) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[name]...)
	async := b.async
	b.mu.RUnlock()

	for i, s := range subs {
		if !s.required && async != nil {
			b.submit(ctx, async, s.l, name, evt)
			continue
		}
		err := s.l.HandleEvent(ctx, name, evt)
		if err == nil {
			continue
		}
		if s.required {
			return fmt.Errorf("event %s listener %d: %w", name, i, err)
		}
		b.warn(err, name, evt, "best-effort event listener failed")
	}
	return nil
}

func (b *Bus) submit(ctx context.Context, async Submitter, l Listener, name string, evt model.PaymentEvent) {
	snapshot := cloneEvent(evt)
	detached := context.WithoutCancel(ctx)
	err := async.Submit(func(context.Context) error {
		if err := l.HandleEvent(detached, name, snapshot); err != nil {
			b.warn(err, name, snapshot, "best-effort event listener failed")
		}
		return nil
	})
	if err != nil {
		b.warn(err, name, evt, "best-effort event listener dropped")
	}
}

func (b *Bus) warn(err error, name string, evt model.PaymentEvent, msg string) {
	ev := b.log.Warn().Err(err).Str("event", name)
	if evt.Transaction != nil {
		ev = ev.Str("transaction_id", evt.Transaction.ID)
	}
	ev.Msg(msg)
}

// cloneEvent copies the entities so later changes by the dispatcher stay invisible.
func cloneEvent(evt model.PaymentEvent) model.PaymentEvent {
	if evt.Transaction != nil {
		t := *evt.Transaction
		t.ExtendedData = evt.Transaction.ExtendedData.Clone()
		evt.Transaction = &t
	}
	if evt.Instruction != nil {
		instr := *evt.Instruction
		instr.ExtendedData = evt.Instruction.ExtendedData.Clone()
		evt.Instruction = &instr
	}
	return evt
}
