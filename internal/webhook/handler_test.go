package webhook_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/order"
	"ms-storefront/internal/store"
	"ms-storefront/internal/store/storetest"
	"ms-storefront/internal/tickets"
	"ms-storefront/internal/webhook"
)

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, orderID string) error {
	return m.Called(ctx, orderID).Error(0)
}

type fixture struct {
	store     *store.Store
	scheduler *MockScheduler
	handler   *webhook.Handler
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	s := storetest.New(t)
	log := logger.NewNop()
	sched := new(MockScheduler)
	sched.On("Schedule", mock.Anything, mock.Anything).Return(nil)
	return &fixture{
		store:     s,
		scheduler: sched,
		handler: webhook.NewHandler(webhook.Deps{
			Records: s,
			Orders:  order.NewLifecycle(s, nil, sched, log),
			Tickets: tickets.NewTicketService(tickets.Deps{Store: s, Logger: log}),
			Secret:  secret,
			Logger:  log,
		}),
	}
}

func (f *fixture) seedOrder(t *testing.T, checkoutID string) *models.Order {
	t.Helper()
	now := time.Now().UTC()
	o := &models.Order{
		ID:             uuid.NewString(),
		TrackingNumber: "ORD20260101-" + strings.ToUpper(uuid.NewString()[:5]),
		CustomerName:   "Thandi Mokoena",
		CustomerEmail:  "thandi@example.com",
		CustomerPhone:  "0821234567",
		ProductName:    "Matric Study Guide",
		Quantity:       2,
		BaseAmount:     45000,
		DeliveryMethod: models.DeliveryPaxi,
		DeliveryFee:    6000,
		FinalPrice:     96000,
		PaxiStoreCode:  "P1234",
		CheckoutID:     checkoutID,
		Status:         models.OrderPending,
		PaymentStatus:  models.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.store.InsertOrder(context.Background(), o, &models.TrackingEvent{
		ID: uuid.NewString(), OrderID: o.ID, Status: o.Status, Note: order.NoteOrderReceived, Author: models.AuthorSystem, CreatedAt: now,
	}))
	return o
}

func (f *fixture) seedTicket(t *testing.T, checkoutID string) *models.Ticket {
	t.Helper()
	now := time.Now().UTC()
	tk := &models.Ticket{
		ID:                uuid.NewString(),
		TicketNumber:      "TKT20260101-ABCDE",
		VerificationToken: "TKT20260101-ABCDE-0123456789",
		FirstName:         "Lerato",
		Surname:           "Dlamini",
		Email:             "lerato@example.com",
		Phone:             "0831234567",
		Quantity:          1,
		UnitAmount:        15000,
		TotalAmount:       15000,
		CheckoutID:        checkoutID,
		PaymentStatus:     models.TicketPending,
		EventName:         "Book Launch",
		EventDate:         "2026-12-05 10:00",
		EventVenue:        "Main Hall",
		QRPayload:         "{}",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, f.store.InsertTicket(context.Background(), tk))
	return tk
}

func (f *fixture) post(body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.Handle(rec, req)
	return rec
}

func TestPaymentSucceededIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	o := f.seedOrder(t, "ch_123")

	body := `{"type":"payment.succeeded","data":{"id":"pay_1","checkoutId":"ch_123","amount":96000,"currency":"ZAR","metadata":{"orderId":"` + o.ID + `"}}}`

	rec := f.post(body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"applied"`)

	got, err := f.store.FindOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, "pay_1", got.PaymentID)

	events, err := f.store.ListTrackingEvents(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, order.NotePaymentConfirmed, events[1].Note)

	rec = f.post(body, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"duplicate"`)

	got, err = f.store.FindOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, got.Status)
	events, err = f.store.ListTrackingEvents(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	f.scheduler.AssertNumberOfCalls(t, "Schedule", 1)
}

func TestUnresolvedEventIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	o := f.seedOrder(t, "ch_known")

	rec := f.post(`{"type":"payment.succeeded","data":{"id":"pay_9","checkoutId":"ch_unknown","metadata":{"orderId":"`+uuid.NewString()+`"}}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"unresolved"`)

	got, err := f.store.FindOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
	assert.Equal(t, o.UpdatedAt.Unix(), got.UpdatedAt.Unix())
	f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestResolvesByMetadataAndPayloadKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	o := f.seedOrder(t, "")

	rec := f.post(`{"type":"payment.failed","payload":{"id":"pay_2","metadata":{"orderId":"`+o.ID+`"}}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.FindOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, models.PaymentFailed, got.PaymentStatus)
}

func TestResolvesTicketByCheckoutID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	tk := f.seedTicket(t, "ch_tkt")

	rec := f.post(`{"type":"payment.succeeded","data":{"id":"pay_t","metadata":{"checkoutId":"ch_tkt","type":"ticket"}}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"ticket"`)

	got, err := f.store.FindTicketByID(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketPaid, got.PaymentStatus)
	assert.Equal(t, "pay_t", got.PaymentID)
}

func TestUnrecognizedAndMalformedBodies(t *testing.T) {
	f := newFixture(t, "")

	rec := f.post(`{"type":"refund.created","data":{}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"ignored"`)

	rec = f.post(`{"type":"payment.succeeded","data":{"id":42}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(`{"type":`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNoStoreConfigured(t *testing.T) {
	h := webhook.NewHandler(webhook.Deps{Logger: logger.NewNop()})
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", strings.NewReader(`not even json`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignedDeliveries(t *testing.T) {
	const secret = "whsec_c2VjcmV0LWtleQ=="
	f := newFixture(t, secret)
	f.seedOrder(t, "ch_sig")
	body := `{"type":"payment.succeeded","data":{"id":"pay_s","checkoutId":"ch_sig"}}`

	now := time.Now()
	sig := webhook.NewVerifier(secret).Sign("msg_1", now, []byte(body))
	headers := map[string]string{
		"webhook-id":        "msg_1",
		"webhook-timestamp": itoa(now.Unix()),
		"webhook-signature": "v1,bm90LWl0 " + sig,
	}
	assert.Equal(t, http.StatusOK, f.post(body, headers).Code)

	assert.Equal(t, http.StatusUnauthorized, f.post(body, nil).Code)

	headers["webhook-signature"] = sig
	assert.Equal(t, http.StatusUnauthorized, f.post(body+" ", headers).Code)

	old := now.Add(-10 * time.Minute)
	headers["webhook-timestamp"] = itoa(old.Unix())
	headers["webhook-signature"] = webhook.NewVerifier(secret).Sign("msg_1", old, []byte(body))
	assert.Equal(t, http.StatusUnauthorized, f.post(body, headers).Code)
}

func TestVerifierErrors(t *testing.T) {
	v := webhook.NewVerifier("plain-secret")
	h := http.Header{}
	assert.True(t, errors.Is(v.Verify(h, nil), webhook.ErrMissingSignature))

	h.Set("webhook-id", "m")
	h.Set("webhook-timestamp", "yesterday")
	h.Set("webhook-signature", "v1,abc")
	assert.True(t, errors.Is(v.Verify(h, nil), webhook.ErrStaleTimestamp))
}

func TestParse(t *testing.T) {
	ev, err := webhook.Parse([]byte(`{"type":"payment.succeeded","data":{"id":"p","checkoutId":" ch_1 ","amount":"96000","metadata":{"orderId":"o-1","attempt":2}}}`))
	require.NoError(t, err)
	s, ok := ev.(webhook.PaymentSucceeded)
	require.True(t, ok)
	assert.Equal(t, "ch_1", s.Payment.CheckoutID)
	assert.Equal(t, int64(96000), s.Payment.Amount)
	assert.Equal(t, "2", s.Payment.Metadata["attempt"])

	ev, err = webhook.Parse([]byte(`{"type":"payment.failed"}`))
	require.NoError(t, err)
	assert.IsType(t, webhook.Unrecognized{}, ev)

	_, err = webhook.Parse([]byte(`[`))
	assert.Error(t, err)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
