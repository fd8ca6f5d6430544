package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/metrics"
	red "okpay-settlement/internal/infra/redis"
)

var _ repository.PaymentInstructionRepository = (*instructionRepoCacheDecorator)(nil)

// instructionRepoCacheDecorator serves non-transactional reads (checkout,
// admin lookups) from redis. Reads inside a unit of work always hit the database.
type instructionRepoCacheDecorator struct {
	inner repository.PaymentInstructionRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewInstructionRepoCacheDecorator(inner repository.PaymentInstructionRepository, cache red.RedisClient, logger *zerolog.Logger) *instructionRepoCacheDecorator {
	return &instructionRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
		log:   logger,
	}
}

func instructionKey(id string) string { return "instruction:" + id }

func (d *instructionRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentInstruction, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}

	key := instructionKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var instr model.PaymentInstruction
		if json.Unmarshal([]byte(val), &instr) == nil {
			metrics.IncCacheRequest("instruction", "hit")
			return &instr, nil
		}
	} else if !errors.Is(err, red.Nil) {
		metrics.IncCacheRequest("instruction", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("instruction cache read failed")
	}

	metrics.IncCacheRequest("instruction", "miss")
	instr, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(instr); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("instruction cache write failed")
		}
	}
	return instr, nil
}

// Save invalidates before writing so a concurrent reader never keeps a stale copy past the write.
func (d *instructionRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.PaymentInstruction) error {
	if err := d.cache.Del(ctx, instructionKey(p.ID)); err != nil {
		d.log.Warn().Err(err).Str("instruction_id", p.ID).Msg("instruction cache invalidation failed")
	}
	return d.inner.Save(ctx, tx, p)
}
