//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestPool(t *testing.T) {
	t.Run("should run queued tasks before stopping", func(t *testing.T) {
		p := NewPool(2, newTestLogger())
		var ran int32
		for i := 0; i < 5; i++ {
			if err := p.Submit(func(ctx context.Context) error {
				atomic.AddInt32(&ran, 1)
				return nil
			}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		p.Start(context.Background())
		p.Stop()
		if got := atomic.LoadInt32(&ran); got != 5 {
			t.Fatalf("expected 5 tasks run, got %d", got)
		}
	})

	t.Run("should reject tasks when the queue is full", func(t *testing.T) {
		p := NewPool(1, newTestLogger()) // queue of 4, not started
		for i := 0; i < 4; i++ {
			if err := p.Submit(func(context.Context) error { return nil }); err != nil {
				t.Fatalf("submit %d: %v", i, err)
			}
		}
		if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("should reject tasks after stop", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		p.Start(context.Background())
		p.Stop()
		p.Stop()
		if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	})

	t.Run("should keep running after a failing task", func(t *testing.T) {
		p := NewPool(1, newTestLogger())
		var ran int32
		_ = p.Submit(func(context.Context) error { return errors.New("boom") })
		_ = p.Submit(func(context.Context) error { atomic.AddInt32(&ran, 1); return nil })
		p.Start(context.Background())
		p.Stop()
		if atomic.LoadInt32(&ran) != 1 {
			t.Fatal("expected the second task to run")
		}
	})

	t.Run("should reject a nil task", func(t *testing.T) {
		if err := NewPool(1, newTestLogger()).Submit(nil); err == nil {
			t.Fatal("expected error")
		}
	})
}
