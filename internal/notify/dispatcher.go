// Package notify sends transactional emails for orders and tickets. Sending is best-effort
// and never changes order or ticket state.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"
)

type ErrorKind string

const (
	ErrConnection ErrorKind = "CONNECTION_ERROR"
	ErrSend       ErrorKind = "SEND_ERROR"
	ErrValidation ErrorKind = "VALIDATION_ERROR"
)

type Result struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// OrderFacts is everything the order confirmation shows.
type OrderFacts struct {
	CustomerName    string
	CustomerEmail   string
	TrackingNumber  string
	ProductName     string
	Quantity        int
	UnitAmount      int64
	DeliveryMethod  string
	DeliveryFee     int64
	DiscountAmount  int64
	FinalPrice      int64
	PaxiStoreCode   string
	DeliveryAddress string
	TrackingURL     string
}

type TicketFacts struct {
	FirstName    string
	Surname      string
	Email        string
	TicketNumber string
	Quantity     int
	TotalAmount  int64
	EventName    string
	EventDate    string
	EventVenue   string
	TicketURL    string
}

type Dispatcher struct {
	transport Transport
	cfg       config.EmailConfig
	support   string
	logger    *logger.Logger
	now       func() time.Time
}

func NewDispatcher(transport Transport, cfg config.EmailConfig, supportEmail string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, cfg: cfg, support: supportEmail, logger: log, now: time.Now}
}

func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, f OrderFacts) Result {
	missing := missingFields(map[string]string{
		"customer_name":   f.CustomerName,
		"customer_email":  f.CustomerEmail,
		"tracking_number": f.TrackingNumber,
		"product_name":    f.ProductName,
	})
	if len(missing) > 0 {
		return d.invalid(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	if f.Quantity <= 0 {
		return d.invalid("quantity must be positive")
	}
	if !utils.ValidEmail(f.CustomerEmail) {
		return d.invalid("invalid recipient email")
	}

	html, text, err := renderOrder(orderView{OrderFacts: f, SupportEmail: d.support, Year: d.now().Year()})
	if err != nil {
		return d.invalid(fmt.Sprintf("render template: %v", err))
	}
	return d.send(ctx, f.CustomerEmail, fmt.Sprintf("Order confirmed - %s", f.TrackingNumber), html, text)
}

func (d *Dispatcher) SendTicketConfirmation(ctx context.Context, f TicketFacts) Result {
	missing := missingFields(map[string]string{
		"first_name":    f.FirstName,
		"email":         f.Email,
		"ticket_number": f.TicketNumber,
		"event_name":    f.EventName,
	})
	if len(missing) > 0 {
		return d.invalid(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}
	if !utils.ValidEmail(f.Email) {
		return d.invalid("invalid recipient email")
	}

	html, text, err := renderTicket(ticketView{TicketFacts: f, SupportEmail: d.support, Year: d.now().Year()})
	if err != nil {
		return d.invalid(fmt.Sprintf("render template: %v", err))
	}
	return d.send(ctx, f.Email, fmt.Sprintf("Your ticket for %s - %s", f.EventName, f.TicketNumber), html, text)
}

func (d *Dispatcher) send(ctx context.Context, to, subject, html, text string) Result {
	if d.transport == nil || !d.cfg.Configured() {
		d.logger.Error("EMAIL", "Email transport is not configured")
		return Result{ErrorKind: ErrConnection, Error: "email transport is not configured"}
	}

	msg := Message{
		MessageID: d.messageID(),
		From:      d.cfg.From,
		FromName:  d.cfg.FromName,
		ReplyTo:   d.cfg.ReplyTo,
		To:        to,
		Subject:   subject,
		HTML:      html,
		Text:      text,
	}

	id, err := d.transport.Send(ctx, msg)
	if err != nil {
		kind := ErrSend
		var te *TransportError
		if errors.As(err, &te) {
			kind = te.Kind
		}
		d.logger.Error("EMAIL", fmt.Sprintf("Send to %s failed (%s): %v", to, kind, err))
		return Result{ErrorKind: kind, Error: err.Error()}
	}
	if id == "" {
		id = msg.MessageID
	}

	d.logger.Info("EMAIL", fmt.Sprintf("Sent %q to %s (%s)", subject, to, id))
	return Result{Success: true, MessageID: id}
}

func (d *Dispatcher) invalid(reason string) Result {
	d.logger.Warn("EMAIL", "Rejected notification: "+reason)
	return Result{ErrorKind: ErrValidation, Error: reason}
}

func (d *Dispatcher) messageID() string {
	domain := "localhost"
	if i := strings.LastIndex(d.cfg.From, "@"); i >= 0 && i < len(d.cfg.From)-1 {
		domain = d.cfg.From[i+1:]
	}
	return fmt.Sprintf("%s@%s", uuid.NewString(), domain)
}

func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range []string{
		"customer_name", "customer_email", "tracking_number", "product_name",
		"first_name", "email", "ticket_number", "event_name",
	} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
