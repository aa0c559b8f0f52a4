package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 10, opts.PoolSize)

	cfg.URL = "redis://:secret@cache.internal:6380/2"
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	cfg.URL = "://broken"
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestRateLimitKey(t *testing.T) {
	window := time.Unix(1700000000, 0)
	assert.Equal(t, "admissions-hub:ratelimit:10.0.0.1:1700000000", RateLimitKey("10.0.0.1", window))
}

func testClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}
	client, err := NewClient(Config{URL: url, DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_Window(t *testing.T) {
	client := testClient(t)
	limiter := NewRateLimiter(client, 2, time.Minute)
	fixed := time.Now()
	limiter.now = func() time.Time { return fixed }

	id := "test-" + fixed.Format(time.RFC3339Nano)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := limiter.Allow(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, resetAt, err := limiter.Allow(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, resetAt.After(fixed))
}

func TestClient_PubSub(t *testing.T) {
	client := testClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := "admissions-hub:test:" + time.Now().Format(time.RFC3339Nano)
	messages, err := client.Subscribe(ctx, channel)
	require.NoError(t, err)

	require.NoError(t, client.Publish(ctx, channel, "hello"))

	select {
	case msg := <-messages:
		assert.Equal(t, "hello", msg.Payload)
		assert.Equal(t, channel, msg.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}
