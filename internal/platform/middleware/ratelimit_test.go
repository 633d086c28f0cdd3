package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	lastKey    string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	s.lastKey = key
	return s.allowed, s.retryAfter, s.err
}

func limitedHandler(limiter Limiter) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return RateLimit(limiter, logger)(next)
}

func TestRateLimitPassesAllowedRequests(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/applications", nil)
	req.RemoteAddr = "203.0.113.7:52144"

	limitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "203.0.113.7", limiter.lastKey)
}

func TestRateLimitBlocksWithRetryAfter(t *testing.T) {
	limiter := &stubLimiter{allowed: false, retryAfter: 30 * time.Second}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/applications", nil)

	limitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limited")
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/applications", nil)

	limitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/applications", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")

	limitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, "198.51.100.9", limiter.lastKey)
}

func TestMemoryLimiterEnforcesWindow(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	// Other clients keep their own budget.
	allowed, _, err = limiter.Allow(ctx, "198.51.100.9")
	require.NoError(t, err)
	assert.True(t, allowed)
}
