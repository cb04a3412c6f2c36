package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

// maxTransitionAttempts bounds how often a transition reloads after losing a race.
const maxTransitionAttempts = 3

const (
	NotePaymentConfirmed    = "payment confirmed"
	NotePaymentFailed       = "payment failed"
	NoteSetupFailed         = "payment setup failed"
	NotePreparingShipment   = "preparing for shipment"
	NotePaidAfterCancelled  = "payment received after cancellation - manual review required"
	NoteOrderReceived       = "order received"
	defaultAdminNotePattern = "status set to %s by admin"
)

type Store interface {
	InsertOrder(ctx context.Context, order *models.Order, first *models.TrackingEvent) error
	FindOrderByID(ctx context.Context, id string) (*models.Order, error)
	FindOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	FindOrderByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order, columns ...string) error
	TransitionOrder(ctx context.Context, order *models.Order, expected models.OrderStatus, event *models.TrackingEvent, columns ...string) (bool, error)
	DeleteOrder(ctx context.Context, id string) error
	ListTrackingEvents(ctx context.Context, orderID string) ([]models.TrackingEvent, error)
}

// AdvanceScheduler queues the deferred paid -> processing step.
type AdvanceScheduler interface {
	Schedule(ctx context.Context, orderID string) error
}

// Lifecycle owns every status change of an order. All writes go through the store's
// conditional transition so concurrent writers cannot regress a status.
type Lifecycle struct {
	store     Store
	publisher kafka.Publisher
	scheduler AdvanceScheduler
	logger    *logger.Logger
	now       func() time.Time
}

func NewLifecycle(store Store, publisher kafka.Publisher, scheduler AdvanceScheduler, log *logger.Logger) *Lifecycle {
	if publisher == nil {
		publisher = kafka.Nop{}
	}
	return &Lifecycle{store: store, publisher: publisher, scheduler: scheduler, logger: log, now: time.Now}
}

// change is what one transition writes. A nil change means leave the order alone.
type change struct {
	status  models.OrderStatus
	note    string
	author  models.EventAuthor
	columns []string
	apply   func(o *models.Order, at time.Time)
	outcome models.Outcome
}

// transition loads the order, asks decide what to do, and writes the result conditionally
// on the status it was decided against. A lost race reloads and decides again.
func (l *Lifecycle) transition(ctx context.Context, orderID string, decide func(o *models.Order) (*change, models.Outcome, error)) (*models.Order, models.Outcome, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		o, err := l.store.FindOrderByID(ctx, orderID)
		if err != nil {
			return nil, "", err
		}

		c, outcome, err := decide(o)
		if err != nil || c == nil {
			return o, outcome, err
		}

		previous := o.Status
		at := l.now().UTC()
		o.Status = c.status
		if c.apply != nil {
			c.apply(o, at)
		}
		event := &models.TrackingEvent{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			Status:    c.status,
			Note:      c.note,
			Author:    c.author,
			CreatedAt: at,
		}

		applied, err := l.store.TransitionOrder(ctx, o, previous, event, append([]string{"status"}, c.columns...)...)
		if err != nil {
			return nil, "", err
		}
		if !applied {
			l.logger.Warn("ORDER", fmt.Sprintf("Order %s changed while moving %s -> %s, retrying (%d/%d)", o.TrackingNumber, previous, c.status, attempt, maxTransitionAttempts))
			continue
		}

		l.logger.LogOrder("TRANSITION", o.TrackingNumber, fmt.Sprintf("%s -> %s (%s, %s)", previous, c.status, c.author, c.note))
		if err := l.publisher.PublishOrderStatusChanged(ctx, kafka.NewOrderEvent(o, previous, c.note, c.author)); err != nil {
			l.logger.Error("KAFKA", fmt.Sprintf("Publish status change for %s failed: %v", o.TrackingNumber, err))
		}
		return o, c.outcome, nil
	}
	return nil, "", &apperr.StoreError{Op: "transition order", Err: fmt.Errorf("order %s kept changing concurrently", orderID)}
}

// PaymentSucceeded records a confirmed payment. Duplicates leave the order untouched, and an
// order that was already cancelled keeps its status but is flagged for manual review.
func (l *Lifecycle) PaymentSucceeded(ctx context.Context, orderID, paymentID string) (*models.Order, models.Outcome, error) {
	o, outcome, err := l.transition(ctx, orderID, func(o *models.Order) (*change, models.Outcome, error) {
		switch o.Status {
		case models.OrderPending:
			return &change{
				status:  models.OrderPaid,
				note:    NotePaymentConfirmed,
				author:  models.AuthorSystem,
				columns: []string{"payment_status", "payment_id"},
				apply: func(o *models.Order, _ time.Time) {
					o.PaymentStatus = models.PaymentCompleted
					if paymentID != "" {
						o.PaymentID = paymentID
					}
				},
				outcome: models.OutcomeApplied,
			}, "", nil
		case models.OrderCancelled:
			if o.PaymentStatus == models.PaymentCompleted && (paymentID == "" || o.PaymentID == paymentID) {
				return nil, models.OutcomeDuplicate, nil
			}
			l.logger.Warn("ORDER", fmt.Sprintf("Payment %s arrived for cancelled order %s; flagged for manual review", paymentID, o.TrackingNumber))
			return &change{
				status:  models.OrderCancelled,
				note:    NotePaidAfterCancelled,
				author:  models.AuthorSystem,
				columns: []string{"payment_status", "payment_id"},
				apply: func(o *models.Order, _ time.Time) {
					o.PaymentStatus = models.PaymentCompleted
					if paymentID != "" {
						o.PaymentID = paymentID
					}
				},
				outcome: models.OutcomeConflict,
			}, "", nil
		default:
			l.logger.Debug("ORDER", fmt.Sprintf("Duplicate payment success for %s in status %s", o.TrackingNumber, o.Status))
			return nil, models.OutcomeDuplicate, nil
		}
	})
	if err != nil {
		return nil, "", err
	}

	if outcome == models.OutcomeApplied && l.scheduler != nil {
		if err := l.scheduler.Schedule(ctx, o.ID); err != nil {
			// the sweeper's catch-up pass still advances orders left in paid
			l.logger.Error("SCHEDULER", fmt.Sprintf("Schedule advance for %s failed: %v", o.TrackingNumber, err))
		}
	}
	return o, outcome, nil
}

// PaymentFailed cancels a pending order. Orders in any other status are left alone.
func (l *Lifecycle) PaymentFailed(ctx context.Context, orderID string) (*models.Order, models.Outcome, error) {
	return l.cancelPending(ctx, orderID, NotePaymentFailed)
}

// MarkSetupFailed cancels a pending order whose checkout session could not be created.
func (l *Lifecycle) MarkSetupFailed(ctx context.Context, orderID string) (*models.Order, models.Outcome, error) {
	return l.cancelPending(ctx, orderID, NoteSetupFailed)
}

func (l *Lifecycle) cancelPending(ctx context.Context, orderID, note string) (*models.Order, models.Outcome, error) {
	return l.transition(ctx, orderID, func(o *models.Order) (*change, models.Outcome, error) {
		if o.Status != models.OrderPending {
			l.logger.Info("ORDER", fmt.Sprintf("Ignoring %q for %s in status %s", note, o.TrackingNumber, o.Status))
			return nil, models.OutcomeIgnored, nil
		}
		return &change{
			status:  models.OrderCancelled,
			note:    note,
			author:  models.AuthorSystem,
			columns: []string{"payment_status"},
			apply: func(o *models.Order, _ time.Time) {
				o.PaymentStatus = models.PaymentFailed
			},
			outcome: models.OutcomeApplied,
		}, "", nil
	})
}

// AdvanceToProcessing is the deferred step after payment. Orders that have moved on, or
// have been deleted, are skipped.
func (l *Lifecycle) AdvanceToProcessing(ctx context.Context, orderID string) error {
	_, _, err := l.transition(ctx, orderID, func(o *models.Order) (*change, models.Outcome, error) {
		if o.Status != models.OrderPaid {
			return nil, models.OutcomeIgnored, nil
		}
		return &change{
			status:  models.OrderProcessing,
			note:    NotePreparingShipment,
			author:  models.AuthorSystem,
			outcome: models.OutcomeApplied,
		}, "", nil
	})
	if apperr.IsNotFound(err) {
		l.logger.Warn("SCHEDULER", fmt.Sprintf("Order %s no longer exists, skipping advance", orderID))
		return nil
	}
	return err
}

// AdminUpdateStatus sets any status on a non-terminal order. Re-setting the current status
// only appends the note.
func (l *Lifecycle) AdminUpdateStatus(ctx context.Context, orderID string, status models.OrderStatus, note string) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperr.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}

	o, _, err := l.transition(ctx, orderID, func(o *models.Order) (*change, models.Outcome, error) {
		if o.Status.Terminal() {
			return nil, "", apperr.NewValidation("status", fmt.Sprintf("order is %s and can no longer change", o.Status))
		}
		if o.Status == status && note == "" {
			return nil, models.OutcomeDuplicate, nil
		}

		n := note
		if n == "" {
			n = fmt.Sprintf(defaultAdminNotePattern, status)
		}
		c := &change{status: status, note: n, author: models.AuthorAdmin, outcome: models.OutcomeApplied}
		if o.Status == status {
			return c, "", nil
		}
		switch status {
		case models.OrderShipped:
			c.columns = []string{"shipped_at"}
			c.apply = func(o *models.Order, at time.Time) { o.ShippedAt = &at }
		case models.OrderDelivered:
			c.columns = []string{"delivered_at"}
			c.apply = func(o *models.Order, at time.Time) { o.DeliveredAt = &at }
		}
		return c, "", nil
	})
	return o, err
}
