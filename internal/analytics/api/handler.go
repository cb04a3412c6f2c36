package analytics_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"

	"ms-storefront/internal/analytics"
	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"
)

const cacheTTL = 30 * time.Second

type Summaries interface {
	OrderSummary(ctx context.Context, since time.Time) (*analytics.OrderAnalytics, error)
	TicketSummary(ctx context.Context) (*analytics.TicketAnalytics, error)
}

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service     Summaries
	Logger      *logger.Logger
	RedisClient *redis.Client
	now         func() time.Time
}

// NewHandler creates a new analytics handler
func NewHandler(service Summaries, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger, now: time.Now}
}

// NewHandlerWithRedis caches summaries in Redis for a short time.
func NewHandlerWithRedis(service Summaries, logger *logger.Logger, redisClient *redis.Client) *Handler {
	h := NewHandler(service, logger)
	h.RedisClient = redisClient
	return h
}

// RegisterRoutes registers the analytics routes on a chi router. Callers mount it behind
// the admin middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Get("/orders", h.GetOrderAnalytics)
		r.Get("/tickets", h.GetTicketAnalytics)
	})
}

// GetOrderAnalytics accepts either ?since=<RFC3339> or ?days=<n>.
func (h *Handler) GetOrderAnalytics(w http.ResponseWriter, r *http.Request) {
	since, err := h.parseSince(r)
	if err != nil {
		h.Logger.Warn("ANALYTICS", err.Error())
		utils.WriteError(w, err)
		return
	}

	key := "analytics:orders:all"
	if !since.IsZero() {
		key = "analytics:orders:" + strconv.FormatInt(since.Unix(), 10)
	}
	var result analytics.OrderAnalytics
	if h.cached(r.Context(), key, &result) {
		utils.WriteSuccess(w, http.StatusOK, "Order analytics", result)
		return
	}

	summary, err := h.Service.OrderSummary(r.Context(), since)
	if err != nil {
		h.Logger.Error("ANALYTICS", "Error getting order analytics: "+err.Error())
		utils.WriteError(w, err)
		return
	}
	h.store(r.Context(), key, summary)
	utils.WriteSuccess(w, http.StatusOK, "Order analytics", summary)
}

func (h *Handler) GetTicketAnalytics(w http.ResponseWriter, r *http.Request) {
	const key = "analytics:tickets"
	var result analytics.TicketAnalytics
	if h.cached(r.Context(), key, &result) {
		utils.WriteSuccess(w, http.StatusOK, "Ticket analytics", result)
		return
	}

	summary, err := h.Service.TicketSummary(r.Context())
	if err != nil {
		h.Logger.Error("ANALYTICS", "Error getting ticket analytics: "+err.Error())
		utils.WriteError(w, err)
		return
	}
	h.store(r.Context(), key, summary)
	utils.WriteSuccess(w, http.StatusOK, "Ticket analytics", summary)
}

func (h *Handler) parseSince(r *http.Request) (time.Time, error) {
	q := r.URL.Query()
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, apperr.NewValidation("since", "since must be an RFC3339 timestamp")
		}
		return t, nil
	}
	if raw := q.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 || days > 3650 {
			return time.Time{}, apperr.NewValidation("days", "days must be between 1 and 3650")
		}
		// whole days so the cache key is stable within a day
		today := h.now().UTC().Truncate(24 * time.Hour)
		return today.AddDate(0, 0, -(days - 1)), nil
	}
	return time.Time{}, nil
}

func (h *Handler) cached(ctx context.Context, key string, dst interface{}) bool {
	if h.RedisClient == nil {
		return false
	}
	raw, err := h.RedisClient.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("Cache read %s failed: %v", key, err))
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return true
}

func (h *Handler) store(ctx context.Context, key string, v interface{}) {
	if h.RedisClient == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.RedisClient.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		h.Logger.Warn("ANALYTICS", fmt.Sprintf("Cache write %s failed: %v", key, err))
	}
}
