package kafka

import (
	"time"

	"ms-storefront/internal/models"
)

// OrderEvent is the payload on the order topics.
type OrderEvent struct {
	OrderID        string               `json:"order_id"`
	TrackingNumber string               `json:"tracking_number"`
	Status         models.OrderStatus   `json:"status"`
	PreviousStatus models.OrderStatus   `json:"previous_status,omitempty"`
	PaymentStatus  models.PaymentStatus `json:"payment_status"`
	FinalPrice     int64                `json:"final_price"`
	Note           string               `json:"note,omitempty"`
	Author         models.EventAuthor   `json:"author,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

func NewOrderEvent(o *models.Order, previous models.OrderStatus, note string, author models.EventAuthor) OrderEvent {
	return OrderEvent{
		OrderID:        o.ID,
		TrackingNumber: o.TrackingNumber,
		Status:         o.Status,
		PreviousStatus: previous,
		PaymentStatus:  o.PaymentStatus,
		FinalPrice:     o.FinalPrice,
		Note:           note,
		Author:         author,
		OccurredAt:     o.UpdatedAt,
	}
}

// TicketEvent is the payload on the ticket topics.
type TicketEvent struct {
	TicketID      string                     `json:"ticket_id"`
	TicketNumber  string                     `json:"ticket_number"`
	PaymentStatus models.TicketPaymentStatus `json:"payment_status"`
	IsVerified    bool                       `json:"is_verified"`
	Quantity      int                        `json:"quantity"`
	TotalAmount   int64                      `json:"total_amount"`
	OccurredAt    time.Time                  `json:"occurred_at"`
}

func NewTicketEvent(t *models.Ticket) TicketEvent {
	return TicketEvent{
		TicketID:      t.ID,
		TicketNumber:  t.TicketNumber,
		PaymentStatus: t.PaymentStatus,
		IsVerified:    t.IsVerified,
		Quantity:      t.Quantity,
		TotalAmount:   t.TotalAmount,
		OccurredAt:    t.UpdatedAt,
	}
}
