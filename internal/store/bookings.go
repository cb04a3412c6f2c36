package store

import (
	"context"
	"time"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
)

func (s *Store) InsertBooking(ctx context.Context, b *models.AccommodationBooking) error {
	_, err := s.Bun.NewInsert().Model(b).Exec(ctx)
	return mapErr("insert booking", "booking", b.Reference, err)
}

func (s *Store) FindBookingByID(ctx context.Context, id string) (*models.AccommodationBooking, error) {
	var b models.AccommodationBooking
	err := s.Bun.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("find booking", "booking", id, err)
	}
	return &b, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus, note string) error {
	res, err := s.Bun.NewUpdate().
		Model((*models.AccommodationBooking)(nil)).
		Set("status = ?", status).
		Set("reviewer_note = ?", note).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapErr("update booking", "booking", id, err)
	}
	if n, _ := rowsAffected(res); n == 0 {
		return &apperr.NotFoundError{Resource: "booking", Key: id}
	}
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	res, err := s.Bun.NewDelete().
		Model((*models.AccommodationBooking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return mapErr("delete booking", "booking", id, err)
	}
	if n, _ := rowsAffected(res); n == 0 {
		return &apperr.NotFoundError{Resource: "booking", Key: id}
	}
	return nil
}
