package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("broker unavailable")

func fail(context.Context) error    { return errBroker }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var changes []string
	cb := New("broker",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithCoolDown(time.Minute),
		WithOnStateChange(func(_ string, from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		}),
	).WithClock(func() time.Time { return now })
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open circuit must not call the dependency")

	now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, changes)
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	now := time.Now()
	cb := New("x", WithFailureThreshold(1), WithCoolDown(time.Second)).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	now = now.Add(time.Second)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBroker)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_LimitsConcurrentProbes(t *testing.T) {
	now := time.Now()
	cb := New("x", WithFailureThreshold(1), WithCoolDown(time.Second)).
		WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	now = now.Add(time.Second)

	err := cb.Execute(ctx, func(ctx context.Context) error {
		assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrProbeInFlight)
		return nil
	})
	require.NoError(t, err)
}

func TestCircuitBreaker_IgnoresCallerCancellation(t *testing.T) {
	cb := New("x", WithFailureThreshold(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IsFailure(t *testing.T) {
	permanent := errors.New("message too large")
	cb := New("x", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, permanent)
	}))

	_ = cb.Execute(context.Background(), func(context.Context) error { return permanent })
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_Nil(t *testing.T) {
	var cb *CircuitBreaker
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errBroker)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, "notification-broker", BrokerBreaker(nil).Name())
	assert.Equal(t, "document-storage", StorageBreaker(nil).Name())
}
