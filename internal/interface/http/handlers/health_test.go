package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCompositeHealthChecker(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name      string
		setup     func(c *CompositeHealthChecker)
		status    string
		ready     bool
		failedKey string
	}{
		{
			name:   "no checks",
			setup:  func(*CompositeHealthChecker) {},
			status: StatusOK,
			ready:  true,
		},
		{
			name: "all healthy",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", ok)
				c.AddOptionalCheck("redis", ok)
			},
			status: StatusOK,
			ready:  true,
		},
		{
			name: "optional dependency down",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", ok)
				c.AddOptionalCheck("redis", fail)
			},
			status:    StatusDegraded,
			ready:     true,
			failedKey: "redis",
		},
		{
			name: "critical dependency down",
			setup: func(c *CompositeHealthChecker) {
				c.AddCheck("postgres", fail)
				c.AddOptionalCheck("redis", fail)
			},
			status:    StatusDown,
			ready:     false,
			failedKey: "postgres",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositeHealthChecker("test")
			tt.setup(c)

			got := c.Check(context.Background())
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.ready, got.Ready)
			assert.Equal(t, "test", got.Version)
			if tt.failedKey != "" {
				assert.False(t, got.Checks[tt.failedKey].Healthy)
				assert.Contains(t, got.Message, tt.failedKey)
			}
		})
	}
}

func TestCompositeHealthChecker_Timeout(t *testing.T) {
	c := NewCompositeHealthChecker("")
	c.SetTimeout(20 * time.Millisecond)
	c.AddCheck("slow", NewPingCheck(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	got := c.Check(context.Background())
	assert.False(t, got.Ready)
	assert.Contains(t, got.Checks["slow"].Message, "deadline exceeded")
}

func TestDirCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDirCheck(dir)(context.Background()))
	assert.Error(t, NewDirCheck(filepath.Join(dir, "missing"))(context.Background()))
}
