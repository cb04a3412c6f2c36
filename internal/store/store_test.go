package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
	"ms-storefront/internal/store"
	"ms-storefront/internal/store/storetest"
)

func newOrder(tracking string) *models.Order {
	now := time.Now().UTC()
	return &models.Order{
		ID:             uuid.NewString(),
		TrackingNumber: tracking,
		CustomerName:   "Thandi Mokoena",
		CustomerEmail:  "thandi@example.com",
		CustomerPhone:  "0821234567",
		ProductName:    "Study Guide",
		Quantity:       2,
		BaseAmount:     45000,
		DeliveryMethod: models.DeliveryPaxi,
		DeliveryFee:    6000,
		FinalPrice:     96000,
		PaxiStoreCode:  "P1234",
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func event(orderID string, status models.OrderStatus, note string, at time.Time) *models.TrackingEvent {
	return &models.TrackingEvent{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Status:    status,
		Note:      note,
		Author:    models.AuthorSystem,
		CreatedAt: at,
	}
}

func TestInsertAndFindOrder(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	o := newOrder("ORD20260101-AAAA1")
	require.NoError(t, s.InsertOrder(ctx, o, event(o.ID, models.OrderPending, "order received", o.CreatedAt)))

	byTracking, err := s.FindOrderByTrackingNumber(ctx, o.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, byTracking.ID)
	assert.Equal(t, int64(96000), byTracking.FinalPrice)

	events, err := s.ListTrackingEvents(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.OrderPending, events[0].Status)
}

func TestFindOrderNotFound(t *testing.T) {
	s := storetest.New(t)

	_, err := s.FindOrderByTrackingNumber(context.Background(), "ORD20260101-ZZZZ")
	assert.True(t, apperr.IsNotFound(err))
}

func TestInsertOrderDuplicateTrackingNumber(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, s.InsertOrder(ctx, newOrder("ORD20260101-DUP01"), nil))
	err := s.InsertOrder(ctx, newOrder("ORD20260101-DUP01"), nil)

	require.Error(t, err)
	assert.True(t, store.IsDuplicate(err))
}

func TestUpdateOrderRejectsTrackingNumber(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	o := newOrder("ORD20260101-IMMUT")
	require.NoError(t, s.InsertOrder(ctx, o, nil))

	o.TrackingNumber = "ORD20260101-CHANGED"
	err := s.UpdateOrder(ctx, o, "tracking_number")
	assert.ErrorIs(t, err, store.ErrImmutableColumn)

	o.CheckoutID = "ch_123"
	require.NoError(t, s.UpdateOrder(ctx, o, "checkout_id"))

	stored, err := s.FindOrderByCheckoutID(ctx, "ch_123")
	require.NoError(t, err)
	assert.Equal(t, "ORD20260101-IMMUT", stored.TrackingNumber)
}

func TestTransitionOrderIsConditional(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	o := newOrder("ORD20260101-COND1")
	require.NoError(t, s.InsertOrder(ctx, o, nil))

	o.Status = models.OrderPaid
	o.PaymentStatus = models.PaymentCompleted
	applied, err := s.TransitionOrder(ctx, o, models.OrderPending, event(o.ID, models.OrderPaid, "payment confirmed", time.Now().UTC()), "status", "payment_status")
	require.NoError(t, err)
	assert.True(t, applied)

	// a second writer expecting pending loses and appends nothing
	stale := newOrder("ignored")
	stale.ID = o.ID
	stale.Status = models.OrderCancelled
	applied, err = s.TransitionOrder(ctx, stale, models.OrderPending, event(o.ID, models.OrderCancelled, "payment failed", time.Now().UTC()), "status")
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := s.FindOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)

	events, err := s.ListTrackingEvents(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.OrderPaid, events[0].Status)
}

func TestFindPaidOrdersBefore(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	old := newOrder("ORD20260101-OLD01")
	old.Status = models.OrderPaid
	old.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.InsertOrder(ctx, old, nil))

	fresh := newOrder("ORD20260101-NEW01")
	fresh.Status = models.OrderPaid
	require.NoError(t, s.InsertOrder(ctx, fresh, nil))

	orders, err := s.FindPaidOrdersBefore(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, old.ID, orders[0].ID)
}

func TestDeleteOrderRemovesEvents(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	o := newOrder("ORD20260101-DEL01")
	require.NoError(t, s.InsertOrder(ctx, o, event(o.ID, models.OrderPending, "order received", o.CreatedAt)))

	require.NoError(t, s.DeleteOrder(ctx, o.ID))

	_, err := s.FindOrderByID(ctx, o.ID)
	assert.True(t, apperr.IsNotFound(err))
	events, err := s.ListTrackingEvents(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.True(t, apperr.IsNotFound(s.DeleteOrder(ctx, o.ID)))
}

func TestCountOrdersByStatus(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	a := newOrder("ORD20260101-CNT01")
	b := newOrder("ORD20260101-CNT02")
	b.Status = models.OrderPaid
	require.NoError(t, s.InsertOrder(ctx, a, nil))
	require.NoError(t, s.InsertOrder(ctx, b, nil))

	rows, err := s.CountOrdersByStatus(ctx, time.Time{})
	require.NoError(t, err)

	got := map[models.OrderStatus]store.StatusCount{}
	for _, r := range rows {
		got[r.Status] = r
	}
	assert.Equal(t, 1, got[models.OrderPaid].Count)
	assert.Equal(t, int64(96000), got[models.OrderPaid].Revenue)
	assert.Equal(t, 1, got[models.OrderPending].Count)
}

func TestPromoCodeActiveFlagNormalisedAtBoundary(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPromoCode(ctx, &models.PromoCode{Code: "LAUNCH", IsActive: true, DiscountAmount: 5000, UsageLimit: 2}))
	require.NoError(t, s.InsertPromoCode(ctx, &models.PromoCode{Code: "RETIRED", IsActive: false, DiscountAmount: 5000}))

	var raw string
	require.NoError(t, s.Bun.NewSelect().Table("promo_codes").Column("is_active").Where("code = ?", "LAUNCH").Scan(ctx, &raw))
	assert.Equal(t, "true", raw)

	p, err := s.FindActivePromoCode(ctx, "LAUNCH")
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	_, err = s.FindActivePromoCode(ctx, "RETIRED")
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, s.SetPromoCodeActive(ctx, "RETIRED", true))
	p, err = s.FindActivePromoCode(ctx, "RETIRED")
	require.NoError(t, err)
	assert.True(t, p.IsActive)
}

func TestPromoLegacyActiveSpellings(t *testing.T) {
	cases := []struct {
		stored string
		active bool
	}{
		{"TRUE", true},
		{" true ", true},
		{"t", true},
		{"1", true},
		{"False", false},
		{"0", false},
		{"yes", false},
	}

	for _, tc := range cases {
		t.Run(tc.stored, func(t *testing.T) {
			s := storetest.New(t)
			ctx := context.Background()

			require.NoError(t, s.InsertPromoCode(ctx, &models.PromoCode{Code: "LEGACY", IsActive: false, DiscountAmount: 100}))
			_, err := s.Bun.NewUpdate().Table("promo_codes").Set("is_active = ?", tc.stored).Where("code = ?", "LEGACY").Exec(ctx)
			require.NoError(t, err)

			p, err := s.FindPromoCode(ctx, "LEGACY")
			require.NoError(t, err)
			assert.Equal(t, tc.active, p.IsActive)

			// reading and reserving must agree on the flag
			ok, err := s.ReservePromoUse(ctx, "LEGACY")
			require.NoError(t, err)
			assert.Equal(t, tc.active, ok)
		})
	}
}

func TestReservePromoUseRespectsLimit(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, s.InsertPromoCode(ctx, &models.PromoCode{Code: "TWICE", IsActive: true, DiscountAmount: 100, UsageLimit: 2}))

	for i := 0; i < 2; i++ {
		ok, err := s.ReservePromoUse(ctx, "TWICE")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.ReservePromoUse(ctx, "TWICE")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.ReleasePromoUse(ctx, "TWICE"))
	p, err := s.FindPromoCode(ctx, "TWICE")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TimesUsed)
}

func TestTicketVerificationIsMonotonic(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	now := time.Now().UTC()
	tk := &models.Ticket{
		ID:                uuid.NewString(),
		TicketNumber:      "TKT20260101-AAAA1",
		VerificationToken: "TKT20260101-AAAA1-XYZXYZXYZX",
		FirstName:         "Sipho",
		Surname:           "Dlamini",
		Email:             "sipho@example.com",
		Phone:             "0820000000",
		Quantity:          1,
		UnitAmount:        15000,
		TotalAmount:       15000,
		PaymentStatus:     models.TicketPaid,
		EventName:         "Book Launch",
		EventDate:         "2026-12-05 10:00",
		EventVenue:        "Main Hall",
		QRPayload:         "{}",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, s.InsertTicket(ctx, tk))

	first := now.Add(time.Minute)
	ok, err := s.MarkTicketVerified(ctx, tk.ID, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkTicketVerified(ctx, tk.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := s.FindTicketByToken(ctx, tk.VerificationToken)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	require.NotNil(t, stored.VerifiedAt)
	assert.WithinDuration(t, first, *stored.VerifiedAt, time.Second)

	err = s.UpdateTicket(ctx, stored, "qr_payload")
	assert.ErrorIs(t, err, store.ErrImmutableColumn)
}

func TestBookingLifecycle(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	now := time.Now().UTC()
	b := &models.AccommodationBooking{
		ID:          uuid.NewString(),
		Reference:   "ACC20260101-AAAA1",
		FullName:    "Lerato M",
		Email:       "lerato@example.com",
		Phone:       "0831112222",
		Institution: "UJ",
		FundingType: "nsfas",
		Status:      models.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, s.InsertBooking(ctx, b))
	require.NoError(t, s.UpdateBookingStatus(ctx, b.ID, models.BookingApproved, "room 12"))

	stored, err := s.FindBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingApproved, stored.Status)
	assert.Equal(t, "room 12", stored.ReviewerNote)

	require.NoError(t, s.DeleteBooking(ctx, b.ID))
	assert.True(t, apperr.IsNotFound(s.DeleteBooking(ctx, b.ID)))
}
