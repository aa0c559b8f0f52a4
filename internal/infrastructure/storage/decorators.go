package storage

import (
	"context"
	"errors"
	"time"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/circuitbreaker"
)

// timeoutStore bounds every storage call.
type timeoutStore struct {
	next    application.FileStore
	timeout time.Duration
}

// WithTimeout wraps store so that Save and Delete give up after d.
// A non-positive d returns store unchanged.
func WithTimeout(store application.FileStore, d time.Duration) application.FileStore {
	if d <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: d}
}

func (s *timeoutStore) Save(ctx context.Context, owner shared.UserID, key application.DocumentKey, file application.Upload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Save(ctx, owner, key, file)
}

func (s *timeoutStore) Delete(ctx context.Context, location string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Delete(ctx, location)
}

// breakerStore fails fast while the remote store is down.
type breakerStore struct {
	next    application.FileStore
	breaker *circuitbreaker.CircuitBreaker
}

// WithBreaker wraps store with a circuit breaker. Unavailable storage
// surfaces as ErrServiceUnavailable so the API answers 503.
func WithBreaker(store application.FileStore, cb *circuitbreaker.CircuitBreaker) application.FileStore {
	if cb == nil {
		return store
	}
	return &breakerStore{next: store, breaker: cb}
}

func (s *breakerStore) Save(ctx context.Context, owner shared.UserID, key application.DocumentKey, file application.Upload) (string, error) {
	var location string
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		location, err = s.next.Save(ctx, owner, key, file)
		return err
	})
	return location, unavailable(err)
}

func (s *breakerStore) Delete(ctx context.Context, location string) error {
	return unavailable(s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Delete(ctx, location)
	}))
}

func unavailable(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) || errors.Is(err, circuitbreaker.ErrProbeInFlight) {
		return shared.WrapError("document", "Storage", shared.ErrServiceUnavailable, "document storage is temporarily unavailable", err)
	}
	return err
}
