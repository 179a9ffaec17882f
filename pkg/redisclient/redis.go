package redisclient

import (
	"context"
	"time"

	"github.com/Creedyfish/multitenant-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

// New creates a Redis client from configuration. The connection is probed
// once but a failed ping is not fatal: Redis backs best-effort concerns
// (events, rate limiting) and its absence degrades gracefully.
func New(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return client, err
	}
	return client, nil
}
