package server

import (
	"context"
	"net/http"
	"time"

	"ms-storefront/internal/utils"
)

// Pinger is anything with a reachability check: the store, a Redis client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Health reports liveness plus the state of each dependency. Only the database decides the
// status code; the rest degrade features rather than the service.
type Health struct {
	Database Pinger
	Redis    Pinger
	// Checks are configuration probes, e.g. the gateway credentials. nil means ready.
	Checks map[string]func() error
	Kafka  bool
}

type healthReport struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	report := healthReport{Status: "ok", Dependencies: map[string]string{}}
	code := http.StatusOK

	if h.Database == nil {
		report.Dependencies["database"] = "not configured"
	} else if err := h.Database.Ping(ctx); err != nil {
		report.Dependencies["database"] = "unreachable"
		report.Status = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		report.Dependencies["database"] = "ok"
	}

	switch {
	case h.Redis == nil:
		report.Dependencies["redis"] = "disabled"
	case h.Redis.Ping(ctx) != nil:
		report.Dependencies["redis"] = "unreachable"
	default:
		report.Dependencies["redis"] = "ok"
	}

	report.Dependencies["kafka"] = "disabled"
	if h.Kafka {
		report.Dependencies["kafka"] = "enabled"
	}

	for name, check := range h.Checks {
		if err := check(); err != nil {
			report.Dependencies[name] = "not configured"
		} else {
			report.Dependencies[name] = "ok"
		}
	}

	utils.WriteJSON(w, code, report)
}
