// Package store is the bun gateway for every persisted collection: orders and their tracking
// events, tickets and scans, promo codes and accommodation bookings.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
)

// ErrDuplicate marks an insert that hit a unique constraint. Reference collisions are
// retried by the caller with a fresh reference.
var ErrDuplicate = errors.New("duplicate key")

// ErrImmutableColumn is returned when an update names a column that is fixed at creation.
var ErrImmutableColumn = errors.New("column cannot be updated")

type Store struct {
	Bun *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{Bun: db}
}

// CreateSchema creates every table from the models. Production uses the SQL migrations; this
// serves tests and local SQLite runs.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, model := range []interface{}{
		(*models.Order)(nil),
		(*models.TrackingEvent)(nil),
		(*models.Ticket)(nil),
		(*models.TicketScan)(nil),
		(*promoCodeRow)(nil),
		(*models.AccommodationBooking)(nil),
	} {
		if _, err := s.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Bun.PingContext(ctx)
}

func mapErr(op, resource, key string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.IsTyped(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.NotFoundError{Resource: resource, Key: key}
	}
	if isUniqueViolation(err) {
		return &apperr.StoreError{Op: op, Err: fmt.Errorf("%w: %v", ErrDuplicate, err)}
	}
	return &apperr.StoreError{Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite drivers only expose the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsDuplicate reports whether err came from a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

func checkColumns(columns []string, immutable ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("no columns to update")
	}
	for _, c := range columns {
		for _, im := range immutable {
			if c == im {
				return fmt.Errorf("%w: %s", ErrImmutableColumn, c)
			}
		}
	}
	return nil
}

func withUpdatedAt(columns []string) []string {
	for _, c := range columns {
		if c == "updated_at" {
			return columns
		}
	}
	return append(append([]string{}, columns...), "updated_at")
}

func rowsAffected(res sql.Result) (int64, error) {
	if res == nil {
		return 0, nil
	}
	return res.RowsAffected()
}
