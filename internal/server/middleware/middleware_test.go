package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.2.3.4:5", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": " 10.0.0.9 "}, "1.2.3.4:5", "10.0.0.9"},
		{"remote addr", nil, "1.2.3.4:5", "1.2.3.4"},
		{"remote without port", nil, "1.2.3.4", "1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

type recordingLimiter struct {
	keys []string
	err  error
}

func (l *recordingLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return true, l.err
}

func TestRateLimitFailsOpen(t *testing.T) {
	lim := &recordingLimiter{err: errors.New("redis down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RateLimit(lim, logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "9.9.9.9:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, []string{"api:9.9.9.9"}, lim.keys)
}

func TestLoggingKeepsRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, extractToken(r))

	r.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, extractToken(r))

	r.Header.Set("X-API-Key", "k1")
	assert.Equal(t, "k1", extractToken(r))

	r.Header.Set("Authorization", "bearer  k2")
	assert.Equal(t, "k2", extractToken(r))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusOK))
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusNotModified))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusNotFound))
	assert.Equal(t, slog.LevelError, levelFor(http.StatusServiceUnavailable))
}

func TestAuthChallengesMissingToken(t *testing.T) {
	h := Auth("k", "/api/health")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/strategies", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
