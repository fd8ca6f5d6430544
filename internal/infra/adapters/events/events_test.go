//go:build !integration

package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/infra/worker"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func depositEvent() model.PaymentEvent {
	instr := &model.PaymentInstruction{ID: "instr-1", Currency: "EUR"}
	t := model.NewFinancialTransaction("tx-1", instr, decimal.RequireFromString("10"))
	t.State = model.TransactionStateDeposited
	t.ProcessedAmount = decimal.RequireFromString("10.00")
	t.ReferenceNumber = "OKPAY__T1"
	return model.PaymentEvent{PluginName: "okpay_payment", Transaction: t, Instruction: instr, OccurredAt: time.Unix(1700000000, 0)}
}

func TestBus_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("should call listeners in order", func(t *testing.T) {
		bus := NewBus(newTestLogger())
		var calls []string
		bus.Subscribe(model.EventDeposit, ListenerFunc(func(context.Context, string, model.PaymentEvent) error {
			calls = append(calls, "first")
			return nil
		}))
		bus.SubscribeBestEffort(model.EventDeposit, ListenerFunc(func(context.Context, string, model.PaymentEvent) error {
			calls = append(calls, "second")
			return nil
		}))

		if err := bus.Dispatch(ctx, model.EventDeposit, depositEvent()); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(calls) != 2 || calls[0] != "first" {
			t.Errorf("unexpected calls %v", calls)
		}
	})

	t.Run("should fail when a required listener fails", func(t *testing.T) {
		bus := NewBus(newTestLogger())
		boom := errors.New("broker down")
		bus.Subscribe(model.EventDeposit, ListenerFunc(func(context.Context, string, model.PaymentEvent) error { return boom }))

		if err := bus.Dispatch(ctx, model.EventDeposit, depositEvent()); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	})

	t.Run("should ignore a failing best-effort listener", func(t *testing.T) {
		bus := NewBus(newTestLogger())
		bus.SubscribeBestEffort(model.EventDeposit, ListenerFunc(func(context.Context, string, model.PaymentEvent) error {
			return errors.New("telegram down")
		}))

		if err := bus.Dispatch(ctx, model.EventDeposit, depositEvent()); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})

	t.Run("should do nothing without listeners", func(t *testing.T) {
		if err := NewBus(newTestLogger()).Dispatch(ctx, "refund", depositEvent()); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})
}

// queueSubmitter holds tasks until run is called.
type queueSubmitter struct {
	tasks []worker.Task
	err   error
}

func (q *queueSubmitter) Submit(task worker.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *queueSubmitter) run() {
	for _, task := range q.tasks {
		_ = task(context.Background())
	}
}

func TestBus_AsyncBestEffort(t *testing.T) {
	ctx := context.Background()

	t.Run("should run best-effort listeners on the submitter with a snapshot", func(t *testing.T) {
		bus := NewBus(newTestLogger())
		q := &queueSubmitter{}
		bus.RunBestEffortOn(q)

		var seen model.TransactionState
		required := 0
		bus.Subscribe(model.EventDeposit, ListenerFunc(func(context.Context, string, model.PaymentEvent) error {
			required++
			return nil
		}))
		bus.SubscribeBestEffort(model.EventDeposit, ListenerFunc(func(_ context.Context, _ string, evt model.PaymentEvent) error {
			seen = evt.Transaction.State
			return nil
		}))

		evt := depositEvent()
		if err := bus.Dispatch(ctx, model.EventDeposit, evt); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if required != 1 {
			t.Fatalf("expected required listener to run inline, got %d calls", required)
		}
		if len(q.tasks) != 1 || seen != "" {
			t.Fatalf("expected one deferred task, got %d (seen %q)", len(q.tasks), seen)
		}

		evt.Transaction.State = model.TransactionStateApproved
		q.run()
		if seen != model.TransactionStateDeposited {
			t.Errorf("expected listener to see the dispatched state, got %q", seen)
		}
	})

	t.Run("should not fail the dispatch when the queue is full", func(t *testing.T) {
		bus := NewBus(newTestLogger())
		bus.RunBestEffortOn(&queueSubmitter{err: worker.ErrQueueFull})
		bus.SubscribeBestEffort(model.EventDeposit, ListenerFunc(func(context.Context, string, model.PaymentEvent) error {
			t.Error("expected dropped listener not to run")
			return nil
		}))
		if err := bus.Dispatch(ctx, model.EventDeposit, depositEvent()); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
	})
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("should publish the deposit keyed by instruction", func(t *testing.T) {
		w := &fakeWriter{}
		p := &KafkaPublisher{w: w}

		if err := p.HandleEvent(ctx, model.EventDeposit, depositEvent()); err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if len(w.msgs) != 1 || string(w.msgs[0].Key) != "instr-1" {
			t.Fatalf("unexpected messages %+v", w.msgs)
		}
		var msg DepositMessage
		if err := json.Unmarshal(w.msgs[0].Value, &msg); err != nil {
			t.Fatalf("invalid payload: %v", err)
		}
		if msg.Amount != "10" || msg.Currency != "EUR" || msg.ReferenceNumber != "OKPAY__T1" || msg.State != "deposited" {
			t.Errorf("unexpected payload %+v", msg)
		}
	})

	t.Run("should surface write errors", func(t *testing.T) {
		p := &KafkaPublisher{w: &fakeWriter{err: errors.New("leader not available")}}
		if err := p.HandleEvent(ctx, model.EventDeposit, depositEvent()); err == nil {
			t.Fatal("expected error")
		}
	})
}
