package booking_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/booking"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*booking.CreateResult, error)
	GetBooking(ctx context.Context, id string) (*models.AccommodationBooking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, note string) (*models.AccommodationBooking, error)
	DeleteBooking(ctx context.Context, id string) error
}

type Handler struct {
	Bookings BookingService
	Logger   *logger.Logger
}

func NewHandler(svc BookingService, log *logger.Logger) *Handler {
	return &Handler{Bookings: svc, Logger: log}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateBooking", err)
		return
	}
	res, err := h.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateBooking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Booking received", res)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.GetBooking(r.Context(), chi.URLParam(r, "bookingId"))
	if err != nil {
		h.fail(w, "GetBooking", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking found", b)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.BookingStatus `json:"status"`
		Note   string               `json:"note"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		h.fail(w, "UpdateBookingStatus", err)
		return
	}
	b, err := h.Bookings.UpdateStatus(r.Context(), chi.URLParam(r, "bookingId"), body.Status, body.Note)
	if err != nil {
		h.fail(w, "UpdateBookingStatus", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Booking updated", b)
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.Bookings.DeleteBooking(r.Context(), chi.URLParam(r, "bookingId")); err != nil {
		h.fail(w, "DeleteBooking", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
