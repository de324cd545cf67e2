package service

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/neirobot/bot-server-go/internal/redis"
)

const floodWindow = time.Minute

// floodScript is a Lua script for sliding window flood limiting
var floodScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local resetAt = now + window
return {1, resetAt}
`)

// FloodLimiter caps how fast a single chat may submit generation requests,
// ahead of quota evaluation. This is traffic shaping, not quota: denial is
// a polite "slow down", never a charged request.
type FloodLimiter struct {
	client *goredis.Client
	limit  int
}

func NewFloodLimiter(client *goredis.Client, limit int) *FloodLimiter {
	return &FloodLimiter{client: client, limit: limit}
}

// Allow checks the sliding window for the chat. Redis trouble fails open so
// a cache outage cannot silence the bot.
func (fl *FloodLimiter) Allow(ctx context.Context, chatID int64) (allowed bool, resetAt time.Time) {
	if fl.limit <= 0 {
		return true, time.Time{}
	}

	now := time.Now().Unix()
	result, err := floodScript.Run(
		ctx,
		fl.client,
		[]string{redis.FloodKey(chatID)},
		now,
		int64(floodWindow.Seconds()),
		fl.limit,
	).Int64Slice()

	if err != nil {
		log.Warn().Err(err).Int64("chatId", chatID).Msg("flood limit check failed, allowing request")
		return true, time.Now().Add(floodWindow)
	}

	if len(result) != 2 {
		log.Warn().Int64("chatId", chatID).Msg("unexpected flood limit result, allowing request")
		return true, time.Now().Add(floodWindow)
	}

	return result[0] == 1, time.Unix(result[1], 0)
}
