package store

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
)

var ticketImmutable = []string{"id", "ticket_number", "verification_token", "qr_payload", "created_at"}

// ---------------- TICKETS ----------------

func (s *Store) InsertTicket(ctx context.Context, ticket *models.Ticket) error {
	_, err := s.Bun.NewInsert().Model(ticket).Exec(ctx)
	return mapErr("insert ticket", "ticket", ticket.TicketNumber, err)
}

func (s *Store) FindTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	return s.findTicket(ctx, "id", id)
}

func (s *Store) FindTicketByToken(ctx context.Context, token string) (*models.Ticket, error) {
	return s.findTicket(ctx, "verification_token", token)
}

func (s *Store) FindTicketByCheckoutID(ctx context.Context, checkoutID string) (*models.Ticket, error) {
	return s.findTicket(ctx, "checkout_id", checkoutID)
}

func (s *Store) findTicket(ctx context.Context, column, value string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.Bun.NewSelect().
		Model(&ticket).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("find ticket", "ticket", value, err)
	}
	return &ticket, nil
}

// UpdateTicket writes the named columns. Identity columns and the issued QR payload are fixed.
func (s *Store) UpdateTicket(ctx context.Context, ticket *models.Ticket, columns ...string) error {
	if err := checkColumns(columns, ticketImmutable...); err != nil {
		return &apperr.StoreError{Op: "update ticket", Err: err}
	}
	ticket.UpdatedAt = time.Now().UTC()
	_, err := s.Bun.NewUpdate().
		Model(ticket).
		Column(withUpdatedAt(columns)...).
		WherePK().
		Exec(ctx)
	return mapErr("update ticket", "ticket", ticket.ID, err)
}

// TransitionTicket updates only while payment_status still equals expected.
func (s *Store) TransitionTicket(ctx context.Context, ticket *models.Ticket, expected models.TicketPaymentStatus, columns ...string) (bool, error) {
	if err := checkColumns(columns, ticketImmutable...); err != nil {
		return false, &apperr.StoreError{Op: "transition ticket", Err: err}
	}
	ticket.UpdatedAt = time.Now().UTC()
	res, err := s.Bun.NewUpdate().
		Model(ticket).
		Column(withUpdatedAt(columns)...).
		WherePK().
		Where("payment_status = ?", expected).
		Exec(ctx)
	if err != nil {
		return false, mapErr("transition ticket", "ticket", ticket.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, mapErr("transition ticket", "ticket", ticket.ID, err)
	}
	return n > 0, nil
}

// MarkTicketVerified flips is_verified once. A second call reports false and leaves
// verified_at untouched.
func (s *Store) MarkTicketVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_verified = ?", true).
		Set("verified_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("is_verified = ?", false).
		Where("payment_status = ?", models.TicketPaid).
		Exec(ctx)
	if err != nil {
		return false, mapErr("verify ticket", "ticket", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, mapErr("verify ticket", "ticket", id, err)
	}
	return n > 0, nil
}

// ---------------- TICKET SCANS ----------------

func (s *Store) AppendTicketScan(ctx context.Context, scan *models.TicketScan) error {
	_, err := s.Bun.NewInsert().Model(scan).Exec(ctx)
	return mapErr("append ticket scan", "ticket scan", scan.TicketID, err)
}

func (s *Store) ListTicketScans(ctx context.Context, ticketID string) ([]models.TicketScan, error) {
	scans := make([]models.TicketScan, 0)
	err := s.Bun.NewSelect().
		Model(&scans).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list ticket scans", "ticket scan", ticketID, err)
	}
	return scans, nil
}

// ---------------- TICKET COUNTS ----------------

type TicketCount struct {
	PaymentStatus models.TicketPaymentStatus `bun:"payment_status" json:"payment_status"`
	Tickets       int                        `bun:"tickets" json:"tickets"`
	Admissions    int                        `bun:"admissions" json:"admissions"`
	Verified      int                        `bun:"verified" json:"verified"`
	Revenue       int64                      `bun:"revenue" json:"revenue"`
}

// CountTickets groups tickets by payment status. Admissions sums quantity, since one ticket
// can admit several people.
func (s *Store) CountTickets(ctx context.Context) ([]TicketCount, error) {
	var rows []TicketCount
	err := s.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("payment_status").
		ColumnExpr("COUNT(*) AS tickets").
		ColumnExpr("COALESCE(SUM(quantity), 0) AS admissions").
		ColumnExpr("COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0) AS verified").
		ColumnExpr("COALESCE(SUM(total_amount), 0) AS revenue").
		Group("payment_status").
		Order("payment_status ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, mapErr("count tickets", "ticket", "", err)
	}
	return rows, nil
}
