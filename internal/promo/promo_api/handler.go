package promo_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type PromoAdmin interface {
	Create(ctx context.Context, req models.PromoCodeRequest) (*models.PromoCode, error)
	SetActive(ctx context.Context, code string, active bool) (*models.PromoCode, error)
	Get(ctx context.Context, code string) (*models.PromoCode, error)
}

type Handler struct {
	Promos PromoAdmin
	Logger *logger.Logger
}

func NewHandler(p PromoAdmin, log *logger.Logger) *Handler {
	return &Handler{Promos: p, Logger: log}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

func (h *Handler) CreatePromo(w http.ResponseWriter, r *http.Request) {
	var req models.PromoCodeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreatePromo", err)
		return
	}
	p, err := h.Promos.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "CreatePromo", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreatePromo: %s by %s", p.Code, auth.Actor(r.Context())))
	utils.WriteSuccess(w, http.StatusCreated, "Promo code created", p)
}

func (h *Handler) GetPromo(w http.ResponseWriter, r *http.Request) {
	p, err := h.Promos.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, "GetPromo", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Promo code found", p)
}

// SetActive handles PATCH with {"is_active": bool}.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsActive *bool `json:"is_active"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "SetPromoActive", err)
		return
	}
	if body.IsActive == nil {
		h.fail(w, "SetPromoActive", apperr.NewValidation("is_active", "is_active is required"))
		return
	}
	p, err := h.Promos.SetActive(r.Context(), chi.URLParam(r, "code"), *body.IsActive)
	if err != nil {
		h.fail(w, "SetPromoActive", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("SetPromoActive: %s active=%t by %s", p.Code, p.IsActive, auth.Actor(r.Context())))
	utils.WriteSuccess(w, http.StatusOK, "Promo code updated", p)
}
