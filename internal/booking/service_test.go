package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/store/storetest"
)

func validRequest() models.BookingRequest {
	return models.BookingRequest{
		FullName:    "Sipho Nkosi",
		Email:       " Sipho@Example.com",
		Phone:       "+27 82 123 4567",
		Institution: "University of Pretoria",
		FundingType: "NSFAS",
		MoveInDate:  "2027-01-15",
	}
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	svc := NewService(s, nil, logger.NewNop())

	res, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)
	assert.Regexp(t, `^ACC\d{8}-[A-Z0-9]{5}$`, res.Reference)
	assert.Equal(t, models.BookingPending, res.Status)

	stored, err := svc.GetBooking(ctx, res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "sipho@example.com", stored.Email)
	assert.Equal(t, "+27821234567", stored.Phone)
}

func TestCreateBookingValidation(t *testing.T) {
	svc := NewService(storetest.New(t), nil, logger.NewNop())

	req := validRequest()
	req.FullName = " "
	req.Email = "sipho"
	req.GuardianPhone = "12"
	req.MoveInDate = "next week"
	_, err := svc.CreateBooking(context.Background(), req)

	fields := apperr.FieldErrors(err)
	assert.Len(t, fields, 4)
	assert.Contains(t, fields, "move_in_date")
	assert.Contains(t, fields, "guardian_phone")
}

func TestReviewAndDeleteBooking(t *testing.T) {
	ctx := context.Background()
	svc := NewService(storetest.New(t), nil, logger.NewNop())
	res, err := svc.CreateBooking(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, res.BookingID, "maybe", "")
	assert.Equal(t, 400, apperr.HTTPStatus(err))

	b, err := svc.UpdateStatus(ctx, res.BookingID, models.BookingApproved, "  room 12 ")
	require.NoError(t, err)
	assert.Equal(t, models.BookingApproved, b.Status)
	assert.Equal(t, "room 12", b.ReviewerNote)

	require.NoError(t, svc.DeleteBooking(ctx, res.BookingID))
	assert.True(t, apperr.IsNotFound(svc.DeleteBooking(ctx, res.BookingID)))
	_, err = svc.UpdateStatus(ctx, res.BookingID, models.BookingDeclined, "")
	assert.True(t, apperr.IsNotFound(err))
}
