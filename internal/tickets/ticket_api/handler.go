package ticket_api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/notify"
	"ms-storefront/internal/tickets"
	"ms-storefront/internal/utils"
)

type TicketService interface {
	CreateTicket(ctx context.Context, req models.TicketRequest) (*tickets.CreateResult, error)
	Lookup(ctx context.Context, token string) (*models.Ticket, error)
	QRCode(ctx context.Context, token string, size int) ([]byte, error)
	SendConfirmation(ctx context.Context, token string) (notify.Result, error)
	CheckIn(ctx context.Context, req models.CheckInRequest, scannedBy string) (*tickets.CheckInResult, error)
	ListScans(ctx context.Context, ticketID string) ([]models.TicketScan, error)
}

type Handler struct {
	Tickets TicketService
	Logger  *logger.Logger
}

func NewHandler(svc TicketService, log *logger.Logger) *Handler {
	return &Handler{Tickets: svc, Logger: log}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteError(w, err)
}

func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req models.TicketRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateTicket", err)
		return
	}

	res, err := h.Tickets.CreateTicket(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateTicket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Ticket created", res)
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tickets.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "ViewTicket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket found", t)
}

// TicketQR serves the QR PNG. ?size= is clamped to a printable range.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 128 || size > 1024 {
		size = 0
	}

	png, err := h.Tickets.QRCode(r.Context(), chi.URLParam(r, "token"), size)
	if err != nil {
		h.fail(w, "TicketQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) SendConfirmation(w http.ResponseWriter, r *http.Request) {
	res, err := h.Tickets.SendConfirmation(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, "SendTicketConfirmation", err)
		return
	}
	msg := "Confirmation email sent"
	if !res.Success {
		msg = "Confirmation email could not be sent"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, res)
}

// ---------------- ADMIN ----------------

// CheckIn records a door scan. Rejected and repeated scans are still 200; the result field
// carries the verdict for the scanner UI.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req models.CheckInRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CheckIn", err)
		return
	}

	res, err := h.Tickets.CheckIn(r.Context(), req, auth.Actor(r.Context()))
	if err != nil {
		h.fail(w, "CheckIn", err)
		return
	}

	msg := "Ticket checked in"
	switch res.Result {
	case models.ScanAlreadyVerified:
		msg = "Ticket was already checked in"
	case models.ScanRejected:
		msg = "Ticket cannot be admitted"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, res)
}

func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.Tickets.ListScans(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		h.fail(w, "ListScans", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Scans found", scans)
}
