// Package cache keeps resolved prices close to the contract and invoice paths.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"backoffice/internal/logger"
	"backoffice/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// PriceCache stores resolved prices per (service, scope). A price change drops
// every scope of the service together.
type PriceCache interface {
	Get(ctx context.Context, serviceID uuid.UUID, scopeKey string) (*model.ResolvedPrice, bool)
	Set(ctx context.Context, serviceID uuid.UUID, scopeKey string, price model.ResolvedPrice)
	InvalidateService(ctx context.Context, serviceID uuid.UUID)
}

// entryTTL bounds ttl by the price's ValidUntil, measured from now.
func entryTTL(ttl time.Duration, price model.ResolvedPrice, now time.Time) time.Duration {
	if price.ValidUntil != nil {
		if d := price.ValidUntil.Sub(now); d < ttl {
			return d
		}
	}
	return ttl
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

type redisPriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPriceCache(client *redis.Client, ttl time.Duration) PriceCache {
	return &redisPriceCache{client: client, ttl: ttl}
}

// ServiceKey is the set indexing every cached scope key of a service.
func ServiceKey(serviceID uuid.UUID) string {
	return "price:" + serviceID.String()
}

// EntryKey holds one cached scope of a service.
func EntryKey(serviceID uuid.UUID, scopeKey string) string {
	return ServiceKey(serviceID) + ":" + scopeKey
}

func (c *redisPriceCache) Get(ctx context.Context, serviceID uuid.UUID, scopeKey string) (*model.ResolvedPrice, bool) {
	raw, err := c.client.Get(ctx, EntryKey(serviceID, scopeKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log := logger.WithComponent("cache")
			log.Warn().Err(err).Msg("Price cache read failed")
		}
		return nil, false
	}
	var price model.ResolvedPrice
	if err := json.Unmarshal([]byte(raw), &price); err != nil {
		return nil, false
	}
	return &price, true
}

func (c *redisPriceCache) Set(ctx context.Context, serviceID uuid.UUID, scopeKey string, price model.ResolvedPrice) {
	ttl := entryTTL(c.ttl, price, time.Now())
	if ttl <= 0 {
		return
	}
	body, err := json.Marshal(price)
	if err != nil {
		return
	}
	entry := EntryKey(serviceID, scopeKey)
	index := ServiceKey(serviceID)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, entry, body, ttl)
	pipe.SAdd(ctx, index, entry)
	pipe.Expire(ctx, index, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log := logger.WithComponent("cache")
		log.Warn().Err(err).Msg("Price cache write failed")
	}
}

func (c *redisPriceCache) InvalidateService(ctx context.Context, serviceID uuid.UUID) {
	index := ServiceKey(serviceID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err == nil {
		err = c.client.Del(ctx, append(keys, index)...).Err()
	}
	if err != nil {
		log := logger.WithComponent("cache")
		log.Warn().Err(err).Msg("Price cache invalidation failed")
	}
}

// Nop is used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, uuid.UUID, string) (*model.ResolvedPrice, bool) { return nil, false }
func (Nop) Set(context.Context, uuid.UUID, string, model.ResolvedPrice)         {}
func (Nop) InvalidateService(context.Context, uuid.UUID)                        {}
