package tickets

import (
	"context"
	"fmt"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/models"
)

// settle loads the ticket, lets decide pick the next payment status and writes it only if
// the status is still the one decided against.
func (s *TicketService) settle(ctx context.Context, ticketID string, decide func(t *models.Ticket) (next models.TicketPaymentStatus, columns []string, outcome models.Outcome)) (*models.Ticket, models.Outcome, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		t, err := s.store.FindTicketByID(ctx, ticketID)
		if err != nil {
			return nil, "", err
		}

		previous := t.PaymentStatus
		next, columns, outcome := decide(t)
		if columns == nil {
			return t, outcome, nil
		}
		t.PaymentStatus = next

		applied, err := s.store.TransitionTicket(ctx, t, previous, columns...)
		if err != nil {
			return nil, "", err
		}
		if !applied {
			s.logger.Warn("TICKET", fmt.Sprintf("Ticket %s changed while settling, retrying (%d/%d)", t.TicketNumber, attempt, maxTransitionAttempts))
			continue
		}

		s.logger.LogTicket("TRANSITION", t.TicketNumber, fmt.Sprintf("%s -> %s (%s)", previous, next, outcome))
		if err := s.publisher.PublishTicketStatusChanged(ctx, kafka.NewTicketEvent(t)); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Publish ticket status for %s failed: %v", t.TicketNumber, err))
		}
		return t, outcome, nil
	}
	return nil, "", &apperr.StoreError{Op: "transition ticket", Err: fmt.Errorf("ticket %s kept changing concurrently", ticketID)}
}

// unidentifiedPayment stands in for the payment id when a cancelled ticket is flagged by an
// event that carried none, so repeats of that event read as duplicates.
const unidentifiedPayment = "unidentified"

// PaymentSucceeded marks a pending ticket paid. A payment for a cancelled ticket is recorded
// but the ticket stays cancelled and is flagged in the log.
func (s *TicketService) PaymentSucceeded(ctx context.Context, ticketID, paymentID string) (*models.Ticket, models.Outcome, error) {
	return s.settle(ctx, ticketID, func(t *models.Ticket) (models.TicketPaymentStatus, []string, models.Outcome) {
		switch t.PaymentStatus {
		case models.TicketPending:
			if paymentID != "" {
				t.PaymentID = paymentID
			}
			return models.TicketPaid, []string{"payment_status", "payment_id"}, models.OutcomeApplied
		case models.TicketCancelled:
			if t.PaymentID != "" && (paymentID == "" || t.PaymentID == paymentID) {
				return t.PaymentStatus, nil, models.OutcomeDuplicate
			}
			if paymentID == "" {
				paymentID = unidentifiedPayment
			}
			s.logger.Warn("TICKET", fmt.Sprintf("Payment %s arrived for cancelled ticket %s; flagged for manual review", paymentID, t.TicketNumber))
			t.PaymentID = paymentID
			return models.TicketCancelled, []string{"payment_id"}, models.OutcomeConflict
		default:
			return t.PaymentStatus, nil, models.OutcomeDuplicate
		}
	})
}

func (s *TicketService) PaymentFailed(ctx context.Context, ticketID string) (*models.Ticket, models.Outcome, error) {
	return s.cancelPending(ctx, ticketID, "payment failed")
}

// MarkSetupFailed cancels a pending ticket whose checkout session could not be created.
func (s *TicketService) MarkSetupFailed(ctx context.Context, ticketID string) (*models.Ticket, models.Outcome, error) {
	return s.cancelPending(ctx, ticketID, "payment setup failed")
}

func (s *TicketService) cancelPending(ctx context.Context, ticketID, reason string) (*models.Ticket, models.Outcome, error) {
	return s.settle(ctx, ticketID, func(t *models.Ticket) (models.TicketPaymentStatus, []string, models.Outcome) {
		if t.PaymentStatus != models.TicketPending {
			s.logger.Info("TICKET", fmt.Sprintf("Ignoring %q for %s in status %s", reason, t.TicketNumber, t.PaymentStatus))
			return t.PaymentStatus, nil, models.OutcomeIgnored
		}
		return models.TicketCancelled, []string{"payment_status"}, models.OutcomeApplied
	})
}
