package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

const maxBodyBytes = 1 << 20

// Records finds the order or ticket a payment belongs to.
type Records interface {
	FindOrderByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error)
	FindOrderByID(ctx context.Context, id string) (*models.Order, error)
	FindTicketByCheckoutID(ctx context.Context, checkoutID string) (*models.Ticket, error)
	FindTicketByID(ctx context.Context, id string) (*models.Ticket, error)
}

type OrderPayments interface {
	PaymentSucceeded(ctx context.Context, orderID, paymentID string) (*models.Order, models.Outcome, error)
	PaymentFailed(ctx context.Context, orderID string) (*models.Order, models.Outcome, error)
}

type TicketPayments interface {
	PaymentSucceeded(ctx context.Context, ticketID, paymentID string) (*models.Ticket, models.Outcome, error)
	PaymentFailed(ctx context.Context, ticketID string) (*models.Ticket, models.Outcome, error)
}

type Deps struct {
	Records Records
	Orders  OrderPayments
	Tickets TicketPayments
	// Secret enables signature verification when set.
	Secret string
	Logger *logger.Logger
}

type Handler struct {
	records  Records
	orders   OrderPayments
	tickets  TicketPayments
	verifier *Verifier
	logger   *logger.Logger
}

func NewHandler(d Deps) *Handler {
	h := &Handler{records: d.Records, orders: d.Orders, tickets: d.Tickets, logger: d.Logger}
	if d.Secret != "" {
		h.verifier = NewVerifier(d.Secret)
	}
	return h
}

type Result struct {
	Outcome   models.Outcome `json:"outcome"`
	Kind      string         `json:"kind,omitempty"`
	Reference string         `json:"reference,omitempty"`
}

// Handle acknowledges every parseable delivery with 200 so the gateway stops retrying. Only
// a body that is not JSON gets 500, and a bad signature gets 401.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Read webhook body: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not read webhook", http.StatusText(http.StatusInternalServerError)))
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header, body); err != nil {
			h.logger.LogWebhook("rejected", "", err.Error())
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid signature", http.StatusText(http.StatusUnauthorized)))
			return
		}
	}

	if h.records == nil {
		h.logger.Warn("WEBHOOK", "No store configured, acknowledging without processing")
		utils.WriteSuccess(w, http.StatusOK, "Webhook received", Result{Outcome: models.OutcomeIgnored})
		return
	}

	ev, err := Parse(body)
	if err != nil {
		h.logger.Error("WEBHOOK", fmt.Sprintf("Unparseable webhook: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Invalid webhook payload", http.StatusText(http.StatusInternalServerError)))
		return
	}

	res, err := h.Reconcile(r.Context(), ev)
	if err != nil {
		// acknowledged anyway; a retry would hit the same failure
		h.logger.Error("WEBHOOK", fmt.Sprintf("Reconcile %s failed: %v", ev.EventType(), err))
		res = Result{Outcome: models.OutcomeIgnored}
	}
	utils.WriteSuccess(w, http.StatusOK, "Webhook received", res)
}

// Reconcile applies one parsed event.
func (h *Handler) Reconcile(ctx context.Context, ev Event) (Result, error) {
	var p Payment
	switch e := ev.(type) {
	case PaymentSucceeded:
		p = e.Payment
	case PaymentFailed:
		p = e.Payment
	case Unrecognized:
		h.logger.LogWebhook("ignored", e.Type, e.Reason)
		return Result{Outcome: models.OutcomeIgnored}, nil
	default:
		return Result{}, fmt.Errorf("unexpected event %T", ev)
	}

	t, err := h.resolve(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if t == nil {
		h.logger.LogWebhook("unresolved", ev.EventType(), fmt.Sprintf("checkoutId=%q orderId=%q ticketId=%q", p.CheckoutID, p.Metadata["orderId"], p.Metadata["ticketId"]))
		return Result{Outcome: models.OutcomeUnresolved}, nil
	}

	var outcome models.Outcome
	_, isSuccess := ev.(PaymentSucceeded)
	switch {
	case t.order != nil && isSuccess:
		_, outcome, err = h.orders.PaymentSucceeded(ctx, t.order.ID, p.ID)
	case t.order != nil:
		_, outcome, err = h.orders.PaymentFailed(ctx, t.order.ID)
	case isSuccess:
		_, outcome, err = h.tickets.PaymentSucceeded(ctx, t.ticket.ID, p.ID)
	default:
		_, outcome, err = h.tickets.PaymentFailed(ctx, t.ticket.ID)
	}
	if apperr.IsNotFound(err) {
		h.logger.LogWebhook("unresolved", ev.EventType(), fmt.Sprintf("%s %s disappeared while reconciling", t.kind(), t.reference()))
		return Result{Outcome: models.OutcomeUnresolved}, nil
	}
	if err != nil {
		return Result{}, err
	}

	h.logger.LogWebhook(string(outcome), ev.EventType(), fmt.Sprintf("%s %s", t.kind(), t.reference()))
	return Result{Outcome: outcome, Kind: t.kind(), Reference: t.reference()}, nil
}

type target struct {
	order  *models.Order
	ticket *models.Ticket
}

func (t *target) kind() string {
	if t.order != nil {
		return "order"
	}
	return "ticket"
}

func (t *target) reference() string {
	if t.order != nil {
		return t.order.TrackingNumber
	}
	return t.ticket.TicketNumber
}

// resolve tries the checkout id first, against orders then tickets, and falls back to the
// record ids carried in metadata. A nil target means nothing matched.
func (h *Handler) resolve(ctx context.Context, p Payment) (*target, error) {
	lookups := []struct {
		key  string
		find func(key string) (*target, error)
	}{
		{p.CheckoutID, func(k string) (*target, error) {
			o, err := h.records.FindOrderByCheckoutID(ctx, k)
			return &target{order: o}, err
		}},
		{p.CheckoutID, func(k string) (*target, error) {
			tk, err := h.records.FindTicketByCheckoutID(ctx, k)
			return &target{ticket: tk}, err
		}},
		{p.Metadata["orderId"], func(k string) (*target, error) {
			o, err := h.records.FindOrderByID(ctx, k)
			return &target{order: o}, err
		}},
		{p.Metadata["ticketId"], func(k string) (*target, error) {
			tk, err := h.records.FindTicketByID(ctx, k)
			return &target{ticket: tk}, err
		}},
	}

	for _, l := range lookups {
		if l.key == "" {
			continue
		}
		t, err := l.find(l.key)
		if err == nil {
			return t, nil
		}
		if !apperr.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}
