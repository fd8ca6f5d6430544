//go:build !integration

package postgres

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
	red "okpay-settlement/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerInstructionRepo mocks the database repository that the decorator wraps.
type mockInnerInstructionRepo struct {
	SaveFunc     func(ctx context.Context, tx repository.Tx, p *model.PaymentInstruction) error
	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.PaymentInstruction, error)
}

func (m *mockInnerInstructionRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentInstruction) error {
	return m.SaveFunc(ctx, tx, p)
}
func (m *mockInnerInstructionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentInstruction, error) {
	return m.FindByIDFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Close() error { return nil }

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
