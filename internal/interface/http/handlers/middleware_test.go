package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

type stubDistributed struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubDistributed) Allow(context.Context, string) (bool, time.Time, error) {
	s.calls++
	return s.allowed, time.Now().Add(30 * time.Second), s.err
}

func TestRateLimiter_LocalBuckets(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{PerMinute: 60, Burst: 2, Logger: logger.Nop()})
	defer rl.Stop()
	ctx := context.Background()

	ok, _ := rl.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = rl.Allow(ctx, "a")
	assert.True(t, ok)

	ok, wait := rl.Allow(ctx, "a")
	assert.False(t, ok)
	assert.True(t, wait > 0)

	ok, _ = rl.Allow(ctx, "b")
	assert.True(t, ok, "buckets are per key")
}

func TestRateLimiter_Distributed(t *testing.T) {
	ctx := context.Background()

	t.Run("distributed decision wins", func(t *testing.T) {
		d := &stubDistributed{allowed: false}
		rl := NewRateLimiter(RateLimiterConfig{PerMinute: 60, Distributed: d, Logger: logger.Nop()})
		defer rl.Stop()

		ok, wait := rl.Allow(ctx, "a")
		assert.False(t, ok)
		assert.True(t, wait > 25*time.Second && wait <= 30*time.Second)
		assert.Equal(t, 1, d.calls)
	})

	t.Run("falls back to local buckets", func(t *testing.T) {
		d := &stubDistributed{err: errors.New("redis down")}
		rl := NewRateLimiter(RateLimiterConfig{PerMinute: 60, Burst: 1, Distributed: d, Logger: logger.Nop()})
		defer rl.Stop()

		ok, _ := rl.Allow(ctx, "a")
		assert.True(t, ok)
		ok, _ = rl.Allow(ctx, "a")
		assert.False(t, ok)
	})
}

func TestRateLimiter_MiddlewareKeysByUser(t *testing.T) {
	var rejected error
	rl := NewRateLimiter(RateLimiterConfig{
		PerMinute: 60,
		Burst:     1,
		Logger:    logger.Nop(),
		OnReject: func(w http.ResponseWriter, _ *http.Request, err error) {
			rejected = err
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})
	defer rl.Stop()

	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithCaller(req.Context(), application.StudentCaller{User: shared.UserID(user)}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("s-1").Code)

	rec := serve("s-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.ErrorIs(t, rejected, shared.ErrRateLimited)

	assert.Equal(t, http.StatusOK, serve("s-2").Code)
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{PerMinute: 60, IdleTTL: time.Minute, Logger: logger.Nop()})
	defer rl.Stop()

	rl.Allow(context.Background(), "a")
	rl.evictIdle(time.Now().Add(2 * time.Minute))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 16))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 4))))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoListingFileServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "s-1"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s-1", "transcript.pdf"), []byte("%PDF"), 0o640))

	h := NoListingFileServer("/uploads/", dir)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/s-1/transcript.pdf", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/s-1/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
