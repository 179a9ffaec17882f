package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"go.uber.org/zap"
)

// Envelope is the wire form of a notification event. DedupKey lets
// idempotent consumers drop re-deliveries; emission is at-least-once.
type Envelope struct {
	Type     string                 `json:"type"`
	DedupKey string                 `json:"dedup_key"`
	Data     map[string]interface{} `json:"data"`
}

// Channel returns the per-org Redis channel events are published to
func Channel(orgID uint) string {
	return fmt.Sprintf("sse:events:%d", orgID)
}

// redisPublisher is the slice of the Redis client the publisher needs
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes notification events to per-org Redis
// channels, retrying transient failures with exponential backoff.
// Publication is best-effort: a failure after retries is logged and
// counted, never surfaced to the request that triggered it.
type RedisPublisher struct {
	client   redisPublisher
	maxTries uint
}

// NewRedisPublisher creates a publisher over the given Redis client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, maxTries: 4}
}

// Publish emits one event to the org's channel
func (p *RedisPublisher) Publish(ctx context.Context, orgID uint, eventType, dedupKey string, data map[string]interface{}) error {
	payload, err := json.Marshal(Envelope{
		Type:     eventType,
		DedupKey: dedupKey,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	channel := Channel(orgID)
	operation := func() (struct{}, error) {
		return struct{}{}, p.client.Publish(ctx, channel, payload).Err()
	}
	_, err = backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(p.maxTries),
	)
	if err != nil {
		logger.FromContext(ctx).Error("Event publish failed after retries",
			zap.String("channel", channel),
			zap.String("type", eventType),
			zap.String("dedup_key", dedupKey),
			zap.Error(err))
		return err
	}

	logger.FromContext(ctx).Debug("Event published",
		zap.String("channel", channel),
		zap.String("type", eventType),
		zap.String("dedup_key", dedupKey))
	return nil
}
