package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DeliveryGuard backs the exactly-once hand-off with Redis SETNX so the
// guarantee holds across instances. Keys expire after the retention
// window; a reference is never legitimately re-delivered within it.
type DeliveryGuard struct {
	client    *redis.Client
	retention time.Duration
}

func NewDeliveryGuard(client *redis.Client, retention time.Duration) *DeliveryGuard {
	if retention == 0 {
		retention = 7 * 24 * time.Hour
	}
	return &DeliveryGuard{client: client, retention: retention}
}

func (g *DeliveryGuard) Acquire(ctx context.Context, reference string) (bool, error) {
	ok, err := g.client.SetNX(ctx, "docpay:delivered:"+reference, time.Now().Unix(), g.retention).Result()
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("delivery guard redis error")
		return false, err
	}
	return ok, nil
}
