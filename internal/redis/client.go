package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// UpdateDedupKey is the key under which a processed Telegram update_id is
// remembered.
func UpdateDedupKey(updateID int64) string {
	return fmt.Sprintf("update:%d", updateID)
}

// FloodKey is the sliding-window key for per-chat flood limiting.
func FloodKey(chatID int64) string {
	return fmt.Sprintf("flood:%d", chatID)
}
