package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/models"
	"ms-storefront/internal/reference"
	"ms-storefront/internal/store"
	"ms-storefront/internal/store/storetest"
)

func insertOrder(t *testing.T, s *store.Store, status models.OrderStatus, qty int, promo string, discount int64, created time.Time) {
	t.Helper()
	o := &models.Order{
		ID:             uuid.NewString(),
		TrackingNumber: reference.New().Generate(reference.PrefixOrder),
		CustomerName:   "Buyer",
		CustomerEmail:  "buyer@example.com",
		CustomerPhone:  "0821234567",
		ProductName:    "Matric Study Guide",
		Quantity:       qty,
		BaseAmount:     45000,
		DeliveryMethod: models.DeliveryPaxi,
		DeliveryFee:    6000,
		PromoCode:      promo,
		DiscountAmount: discount,
		FinalPrice:     45000*int64(qty) + 6000 - discount,
		PaxiStoreCode:  "P1234",
		Status:         status,
		PaymentStatus:  models.PaymentPending,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, s.InsertOrder(context.Background(), o, &models.TrackingEvent{
		ID: uuid.NewString(), OrderID: o.ID, Status: status, Note: "seeded", Author: models.AuthorSystem, CreatedAt: created,
	}))
}

func TestOrderSummary(t *testing.T) {
	s := storetest.New(t)
	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	insertOrder(t, s, models.OrderPaid, 2, "", 0, day1)
	insertOrder(t, s, models.OrderDelivered, 1, "SAVE50", 5000, day1.Add(time.Hour))
	insertOrder(t, s, models.OrderShipped, 1, "SAVE50", 5000, day2)
	insertOrder(t, s, models.OrderCancelled, 3, "WELCOME", 1000, day2)
	insertOrder(t, s, models.OrderPending, 1, "", 0, day2)

	got, err := NewService(s).OrderSummary(context.Background(), time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 5, got.TotalOrders)
	assert.Equal(t, 3, got.SettledOrders)
	assert.Equal(t, 4, got.BooksSold)
	assert.Equal(t, int64(96000+46000+46000), got.Revenue)
	assert.Equal(t, int64(10000), got.TotalDiscount)
	assert.Nil(t, got.Since)

	require.Len(t, got.DailySales, 2)
	assert.Equal(t, DailySales{Date: "2026-03-01", Orders: 2, BooksSold: 3, Revenue: 142000}, got.DailySales[0])
	assert.Equal(t, "2026-03-02", got.DailySales[1].Date)

	require.Len(t, got.DiscountUsage, 1, "cancelled orders do not count as redemptions")
	assert.Equal(t, DiscountUsage{Code: "SAVE50", Uses: 2, TotalDiscount: 10000}, got.DiscountUsage[0])
}

func TestOrderSummarySince(t *testing.T) {
	s := storetest.New(t)
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	insertOrder(t, s, models.OrderPaid, 1, "", 0, old)
	insertOrder(t, s, models.OrderPaid, 1, "", 0, old.AddDate(1, 0, 0))

	got, err := NewService(s).OrderSummary(context.Background(), old.AddDate(0, 6, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalOrders)
	assert.Equal(t, 1, got.SettledOrders)
	require.NotNil(t, got.Since)
}

func TestTicketSummary(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	now := time.Now().UTC()
	for i, st := range []models.TicketPaymentStatus{models.TicketPaid, models.TicketPaid, models.TicketCancelled} {
		tn := reference.New().Generate(reference.PrefixTicket)
		require.NoError(t, s.InsertTicket(ctx, &models.Ticket{
			ID:                uuid.NewString(),
			TicketNumber:      tn,
			VerificationToken: tn + "-TOKEN00000",
			FirstName:         "Guest",
			Surname:           "Number",
			Email:             "guest@example.com",
			Phone:             "0821234567",
			Quantity:          i + 1,
			UnitAmount:        15000,
			TotalAmount:       15000 * int64(i+1),
			PaymentStatus:     st,
			EventName:         "Book Launch",
			EventDate:         "2026-12-05 10:00",
			EventVenue:        "Main Hall",
			QRPayload:         "{}",
			CreatedAt:         now,
			UpdatedAt:         now,
		}))
		if i == 0 {
			tk, err := s.FindTicketByToken(ctx, tn+"-TOKEN00000")
			require.NoError(t, err)
			ok, err := s.MarkTicketVerified(ctx, tk.ID, now)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}

	got, err := NewService(s).TicketSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Tickets)
	assert.Equal(t, 3, got.Admissions)
	assert.Equal(t, 1, got.CheckedIn)
	assert.Equal(t, int64(45000), got.Revenue)
	assert.Len(t, got.ByStatus, 2)
}
