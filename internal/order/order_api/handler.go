package order_api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/notify"
	"ms-storefront/internal/order"
	"ms-storefront/internal/promo"
	"ms-storefront/internal/utils"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (*order.CreateResult, error)
	Track(ctx context.Context, trackingNumber string) (*models.OrderTracking, error)
	SendConfirmation(ctx context.Context, trackingNumber string) (notify.Result, error)
	GetOrder(ctx context.Context, id string) (*models.OrderTracking, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus, note string) (*models.Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

type PromoEvaluator interface {
	Evaluate(ctx context.Context, code string) (promo.Evaluation, error)
}

type Handler struct {
	Orders OrderService
	Promos PromoEvaluator
	Logger *logger.Logger
}

func NewHandler(orders OrderService, promos PromoEvaluator, log *logger.Logger) *Handler {
	return &Handler{Orders: orders, Promos: promos, Logger: log}
}

// fail logs the full error and writes only its public form.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateOrder", err)
		return
	}

	res, err := h.Orders.CreateOrder(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateOrder", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateOrder: %s created, redirecting to checkout", res.TrackingNumber))
	utils.WriteSuccess(w, http.StatusCreated, "Order created", res)
}

func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	tracking, err := h.Orders.Track(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.fail(w, "TrackOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order found", tracking)
}

// SendConfirmation is called by the storefront when the customer returns from a successful
// checkout. Email failures are reported in the body, not as an HTTP error.
func (h *Handler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Orders.SendConfirmation(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		h.fail(w, "SendConfirmation", err)
		return
	}
	msg := "Confirmation email sent"
	if !res.Success {
		msg = "Confirmation email could not be sent"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, res)
}

func (h *Handler) VerifyPromo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "VerifyPromo", err)
		return
	}

	ev, err := h.Promos.Evaluate(r.Context(), body.Code)
	if err != nil {
		h.fail(w, "VerifyPromo", err)
		return
	}
	if !ev.Valid {
		h.Logger.Debug("API", fmt.Sprintf("VerifyPromo: %q rejected (%s)", strings.TrimSpace(body.Code), ev.Reason))
	}
	utils.WriteSuccess(w, http.StatusOK, ev.Message, ev)
}

// ---------------- ADMIN ----------------

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	o, err := h.Orders.GetOrder(r.Context(), orderID)
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Order found", o)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var body struct {
		Status models.OrderStatus `json:"status"`
		Note   string             `json:"note"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "UpdateStatus", err)
		return
	}

	o, err := h.Orders.UpdateStatus(r.Context(), orderID, body.Status, body.Note)
	if err != nil {
		h.fail(w, "UpdateStatus", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UpdateStatus: %s is now %s", o.TrackingNumber, o.Status))
	utils.WriteSuccess(w, http.StatusOK, "Order status updated", o)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("DeleteOrder: orderId=%s", orderID))

	if err := h.Orders.DeleteOrder(r.Context(), orderID); err != nil {
		h.fail(w, "DeleteOrder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
