package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// BalanceCache is a read-through cache of materialized balances. A nil cache
// or nil client disables caching.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceCache{client: client, ttl: ttl}
}

func balanceKey(id uuid.UUID) string {
	return "wallet:balance:" + id.String()
}

func generationKey(id uuid.UUID) string {
	return "wallet:balance:gen:" + id.String()
}

// generationTTL outlives any read that races an invalidation.
const generationTTL = 24 * time.Hour

var errStaleBalance = errors.New("balance changed since it was read")

func (c *BalanceCache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *BalanceCache) Get(ctx context.Context, id uuid.UUID) (int64, bool) {
	if !c.enabled() {
		return 0, false
	}
	v, err := c.client.Get(ctx, balanceKey(id)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("wallet_id", id.String()).Msg("balance cache read failed")
		}
		return 0, false
	}
	return v, true
}

// Generation returns the wallet's invalidation counter. Read it before loading
// the balance and hand it to Set. A negative value means the counter is
// unknown and Set will not cache.
func (c *BalanceCache) Generation(ctx context.Context, id uuid.UUID) int64 {
	if !c.enabled() {
		return -1
	}
	n, err := c.client.Get(ctx, generationKey(id)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("wallet_id", id.String()).Msg("balance cache generation read failed")
		return -1
	}
	return n
}

// Set caches balance only if no invalidation happened since gen was read.
func (c *BalanceCache) Set(ctx context.Context, id uuid.UUID, balance, gen int64) {
	if !c.enabled() || gen < 0 {
		return
	}
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, generationKey(id)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleBalance
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, balanceKey(id), balance, c.ttl)
			return nil
		})
		return err
	}, generationKey(id))
	switch {
	case err == nil, errors.Is(err, errStaleBalance), errors.Is(err, redis.TxFailedErr):
	default:
		log.Warn().Err(err).Str("wallet_id", id.String()).Msg("balance cache write failed")
	}
}

// Invalidate drops cached balances and bumps their generation so that reads
// started before the change cannot repopulate them.
func (c *BalanceCache) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if !c.enabled() || len(ids) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, balanceKey(id))
			pipe.Incr(ctx, generationKey(id))
			pipe.Expire(ctx, generationKey(id), generationTTL)
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Int("count", len(ids)).Msg("balance cache invalidation failed")
	}
}
