// Package booking takes accommodation applications and lets admins review them.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/reference"
	"ms-storefront/internal/store"
	"ms-storefront/internal/utils"
)

type Store interface {
	InsertBooking(ctx context.Context, b *models.AccommodationBooking) error
	FindBookingByID(ctx context.Context, id string) (*models.AccommodationBooking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus, note string) error
	DeleteBooking(ctx context.Context, id string) error
}

type Service struct {
	store  Store
	refs   *reference.Generator
	logger *logger.Logger
	now    func() time.Time
}

func NewService(s Store, refs *reference.Generator, log *logger.Logger) *Service {
	if refs == nil {
		refs = reference.New()
	}
	return &Service{store: s, refs: refs, logger: log, now: time.Now}
}

type CreateResult struct {
	BookingID string               `json:"booking_id"`
	Reference string               `json:"reference"`
	Status    models.BookingStatus `json:"status"`
}

func (s *Service) CreateBooking(ctx context.Context, req models.BookingRequest) (*CreateResult, error) {
	b, err := normalizeBooking(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	b.ID = uuid.NewString()
	b.Status = models.BookingPending
	b.CreatedAt = now
	b.UpdatedAt = now

	for attempt := 1; attempt <= reference.MaxAttempts; attempt++ {
		b.Reference = s.refs.Generate(reference.PrefixBooking)
		err = s.store.InsertBooking(ctx, b)
		if err == nil {
			s.logger.Info("BOOKING", fmt.Sprintf("Booking %s received from %s (%s)", b.Reference, b.Email, b.Institution))
			return &CreateResult{BookingID: b.ID, Reference: b.Reference, Status: b.Status}, nil
		}
		if !store.IsDuplicate(err) {
			break
		}
		s.logger.Warn("BOOKING", fmt.Sprintf("Booking reference %s collided (attempt %d/%d)", b.Reference, attempt, reference.MaxAttempts))
	}
	return nil, apperr.Store("insert booking", err)
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.AccommodationBooking, error) {
	return s.store.FindBookingByID(ctx, id)
}

// UpdateStatus records an admin review. Any status may follow any other.
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, note string) (*models.AccommodationBooking, error) {
	if !status.Valid() {
		return nil, apperr.NewValidation("status", fmt.Sprintf("unknown status %q", status))
	}
	if err := s.store.UpdateBookingStatus(ctx, id, status, utils.CleanText(note, 500)); err != nil {
		return nil, err
	}
	s.logger.Info("BOOKING", fmt.Sprintf("Booking %s set to %s", id, status))
	return s.store.FindBookingByID(ctx, id)
}

func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.logger.Warn("BOOKING", fmt.Sprintf("Booking %s deleted by admin", id))
	return nil
}

func normalizeBooking(req models.BookingRequest) (*models.AccommodationBooking, error) {
	b := &models.AccommodationBooking{
		FullName:        utils.CleanText(req.FullName, 120),
		Email:           utils.NormalizeEmail(req.Email),
		Phone:           utils.NormalizePhone(req.Phone),
		IDNumber:        utils.CleanText(req.IDNumber, 20),
		Gender:          utils.CleanText(req.Gender, 30),
		Institution:     utils.CleanText(req.Institution, 160),
		CourseOfStudy:   utils.CleanText(req.CourseOfStudy, 160),
		YearOfStudy:     utils.CleanText(req.YearOfStudy, 20),
		FundingType:     utils.CleanText(req.FundingType, 60),
		PreferredArea:   utils.CleanText(req.PreferredArea, 120),
		MoveInDate:      utils.CleanText(req.MoveInDate, 20),
		GuardianName:    utils.CleanText(req.GuardianName, 120),
		GuardianPhone:   utils.NormalizePhone(req.GuardianPhone),
		AdditionalNotes: utils.CleanText(req.AdditionalNotes, 1000),
	}

	v := &apperr.ValidationError{}
	if b.FullName == "" {
		v.Add("full_name", "is required")
	}
	if !utils.ValidEmail(b.Email) {
		v.Add("email", "must be a valid email address")
	}
	if !utils.ValidPhone(b.Phone) {
		v.Add("phone", "must be a valid phone number")
	}
	if b.Institution == "" {
		v.Add("institution", "is required")
	}
	if b.FundingType == "" {
		v.Add("funding_type", "is required")
	}
	if b.GuardianPhone != "" && !utils.ValidPhone(b.GuardianPhone) {
		v.Add("guardian_phone", "must be a valid phone number")
	}
	if b.MoveInDate != "" {
		if _, err := time.Parse("2006-01-02", b.MoveInDate); err != nil {
			v.Add("move_in_date", "must be a date like 2026-02-01")
		}
	}
	return b, v.OrNil()
}
