package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	failures int
	calls    int
	channel  string
	payload  []byte
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.calls++
	cmd := redis.NewIntCmd(ctx)
	if f.calls <= f.failures {
		cmd.SetErr(errors.New("connection refused"))
		return cmd
	}
	f.channel = channel
	f.payload = message.([]byte)
	cmd.SetVal(1)
	return cmd
}

func TestChannelIsPerOrg(t *testing.T) {
	assert.Equal(t, "sse:events:10", Channel(10))
	assert.Equal(t, "sse:events:20", Channel(20))
}

func TestPublishEnvelope(t *testing.T) {
	fake := &fakeRedis{}
	p := &RedisPublisher{client: fake, maxTries: 3}

	err := p.Publish(context.Background(), 10, "purchase_request_update", "pr-1-APPROVED",
		map[string]interface{}{"request_id": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "sse:events:10", fake.channel)

	var env Envelope
	require.NoError(t, json.Unmarshal(fake.payload, &env))
	assert.Equal(t, "purchase_request_update", env.Type)
	assert.Equal(t, "pr-1-APPROVED", env.DedupKey)
	assert.Equal(t, float64(1), env.Data["request_id"])
}

func TestPublishRetriesTransientFailures(t *testing.T) {
	fake := &fakeRedis{failures: 2}
	p := &RedisPublisher{client: fake, maxTries: 4}

	err := p.Publish(context.Background(), 10, "low_stock", "lowstock-7-2", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, fake.calls)
}

func TestPublishGivesUpAfterMaxTries(t *testing.T) {
	fake := &fakeRedis{failures: 10}
	p := &RedisPublisher{client: fake, maxTries: 2}

	err := p.Publish(context.Background(), 10, "low_stock", "lowstock-7-2", nil)
	assert.Error(t, err)
	assert.Equal(t, 2, fake.calls)
}
