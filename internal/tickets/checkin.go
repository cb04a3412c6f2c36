package tickets

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
	"ms-storefront/internal/tickets/qr"
	"ms-storefront/internal/utils"
)

type CheckInResult struct {
	Result       models.ScanResult `json:"result"`
	TicketNumber string            `json:"ticket_number"`
	Name         string            `json:"name"`
	Quantity     int               `json:"quantity"`
	Reason       string            `json:"reason,omitempty"`
	Ticket       *models.Ticket    `json:"ticket"`
}

// CheckIn admits the holder of a paid ticket once. Every attempt against a known ticket is
// recorded as a scan, including rejected and repeated ones.
func (s *TicketService) CheckIn(ctx context.Context, req models.CheckInRequest, scannedBy string) (*CheckInResult, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" && strings.TrimSpace(req.QRPayload) != "" {
		p, err := qr.ParsePayload(req.QRPayload)
		if err != nil {
			return nil, apperr.NewValidation("qr_payload", "is not a ticket QR code")
		}
		token = p.VerificationToken
	}
	if token == "" {
		return nil, apperr.NewValidation("token", "token or qr_payload is required")
	}

	t, err := s.store.FindTicketByToken(ctx, token)
	if err != nil {
		if apperr.IsNotFound(err) {
			s.logger.LogSecurity("CHECKIN_UNKNOWN", fmt.Sprintf("Unknown ticket token presented by %s", scannedBy))
			return nil, &apperr.NotFoundError{Resource: "ticket"}
		}
		return nil, apperr.Store("find ticket", err)
	}

	res := &CheckInResult{
		TicketNumber: t.TicketNumber,
		Name:         strings.TrimSpace(t.FirstName + " " + t.Surname),
		Quantity:     t.Quantity,
	}
	switch {
	case t.PaymentStatus != models.TicketPaid:
		res.Result = models.ScanRejected
		res.Reason = fmt.Sprintf("ticket is %s", t.PaymentStatus)
	case t.IsVerified:
		res.Result = models.ScanAlreadyVerified
	default:
		at := s.now().UTC()
		ok, err := s.store.MarkTicketVerified(ctx, t.ID, at)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Result = models.ScanAccepted
			t.IsVerified = true
			t.VerifiedAt = &at
		} else {
			// lost to a concurrent scan
			res.Result = models.ScanAlreadyVerified
		}
	}

	scan := &models.TicketScan{
		ID:        uuid.NewString(),
		TicketID:  t.ID,
		ScannedBy: scannedBy,
		Location:  utils.CleanText(req.Location, 120),
		Note:      utils.CleanText(req.Note, 500),
		Result:    res.Result,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendTicketScan(ctx, scan); err != nil {
		s.logger.Error("TICKET", fmt.Sprintf("Record scan for %s failed: %v", t.TicketNumber, err))
	}

	s.logger.LogTicket("CHECKIN", t.TicketNumber, fmt.Sprintf("%s by %s", res.Result, scannedBy))
	t.CheckoutID = ""
	t.PaymentID = ""
	res.Ticket = t
	return res, nil
}

func (s *TicketService) ListScans(ctx context.Context, ticketID string) ([]models.TicketScan, error) {
	if _, err := s.store.FindTicketByID(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.store.ListTicketScans(ctx, ticketID)
}
