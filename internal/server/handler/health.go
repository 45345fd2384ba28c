package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency whose liveness is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	mode    string
	started time.Time
	deps    map[string]Pinger
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. deps maps a dependency name
// ("postgres", "redis") to its pinger; nil entries are skipped.
func NewHealthHandler(mode string, deps map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		mode:    mode,
		started: time.Now().UTC(),
		deps:    deps,
		logger:  logHandler(logger, "health"),
	}
}

// HealthCheck reports the run mode, uptime and the state of each dependency.
// A failing dependency turns the response into a 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = "down"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	writeJSON(w, code, map[string]any{
		"status":       status,
		"mode":         h.mode,
		"dependencies": deps,
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
