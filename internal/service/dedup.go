package service

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/redis"
)

// UpdateDeduper suppresses duplicate webhook deliveries. Telegram redelivers
// updates until they are acked, so the same update_id can arrive more than
// once; the first delivery claims the id with SETNX and later ones are
// dropped. Redis trouble fails open: a duplicate slipping through is bounded
// by the conditional counter updates downstream.
type UpdateDeduper struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewUpdateDeduper(client *goredis.Client, ttl time.Duration) *UpdateDeduper {
	return &UpdateDeduper{client: client, ttl: ttl}
}

// Seen reports whether this update_id was already processed, claiming it as
// processed otherwise.
func (d *UpdateDeduper) Seen(ctx context.Context, updateID int64) bool {
	claimed, err := d.client.SetNX(ctx, redis.UpdateDedupKey(updateID), 1, d.ttl).Result()
	if err != nil {
		log.Warn().Err(err).Int64("updateId", updateID).Msg("update dedup check failed, processing anyway")
		return false
	}
	return !claimed
}

// Release drops the claim on an update_id whose processing failed, so the
// redelivery Telegram sends after a non-2xx ack is not treated as a
// duplicate.
func (d *UpdateDeduper) Release(ctx context.Context, updateID int64) {
	if err := d.client.Del(ctx, redis.UpdateDedupKey(updateID)).Err(); err != nil {
		log.Warn().Err(err).Int64("updateId", updateID).Msg("update dedup release failed")
	}
}
