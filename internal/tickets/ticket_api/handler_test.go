package ticket_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/notify"
	"ms-storefront/internal/tickets"
	"ms-storefront/internal/utils"
)

type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) CreateTicket(ctx context.Context, req models.TicketRequest) (*tickets.CreateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.CreateResult), args.Error(1)
}

func (m *MockTicketService) Lookup(ctx context.Context, token string) (*models.Ticket, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}

func (m *MockTicketService) QRCode(ctx context.Context, token string, size int) ([]byte, error) {
	args := m.Called(ctx, token, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockTicketService) SendConfirmation(ctx context.Context, token string) (notify.Result, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(notify.Result), args.Error(1)
}

func (m *MockTicketService) CheckIn(ctx context.Context, req models.CheckInRequest, scannedBy string) (*tickets.CheckInResult, error) {
	args := m.Called(ctx, req, scannedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tickets.CheckInResult), args.Error(1)
}

func (m *MockTicketService) ListScans(ctx context.Context, ticketID string) ([]models.TicketScan, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TicketScan), args.Error(1)
}

const token = "TKT20260101-ABCDE-0123456789"

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/tickets", h.CreateTicket)
	r.Get("/api/tickets/{token}", h.ViewTicket)
	r.Get("/api/tickets/{token}/qr.png", h.TicketQR)
	r.Post("/api/tickets/{token}/confirmation", h.SendConfirmation)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p := &auth.Principal{Subject: "u-1", Email: "door@shop.test"}
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
			})
		})
		r.Post("/api/admin/tickets/check-in", h.CheckIn)
		r.Get("/api/admin/tickets/{ticketId}/scans", h.ListScans)
	})
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateTicketHandler(t *testing.T) {
	svc := new(MockTicketService)
	svc.On("CreateTicket", mock.Anything, models.TicketRequest{FirstName: "Lerato", Surname: "Dlamini", Email: "l@example.com", Phone: "0831234567", Quantity: 1}).
		Return(&tickets.CreateResult{TicketID: "t-1", TicketNumber: "TKT20260101-ABCDE", RedirectURL: "https://pay.test/x"}, nil)
	router := newRouter(NewHandler(svc, logger.NewNop()))

	body := `{"first_name":"Lerato","surname":"Dlamini","email":"l@example.com","phone":"0831234567","quantity":1}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tickets", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, "https://pay.test/x", data["redirect_url"])
}

func TestTicketQRHandler(t *testing.T) {
	svc := new(MockTicketService)
	svc.On("QRCode", mock.Anything, token, 0).Return([]byte("\x89PNG..."), nil)
	svc.On("QRCode", mock.Anything, token, 512).Return([]byte("\x89PNG512"), nil)
	router := newRouter(NewHandler(svc, logger.NewNop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickets/"+token+"/qr.png?size=5000", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickets/"+token+"/qr.png?size=512", nil))
	assert.Equal(t, "\x89PNG512", rec.Body.String())
}

func TestViewTicketNotFound(t *testing.T) {
	svc := new(MockTicketService)
	svc.On("Lookup", mock.Anything, "nope").Return(nil, &apperr.NotFoundError{Resource: "ticket"})
	router := newRouter(NewHandler(svc, logger.NewNop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickets/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckInRecordsScanner(t *testing.T) {
	svc := new(MockTicketService)
	svc.On("CheckIn", mock.Anything, models.CheckInRequest{Token: token, Location: "Gate A"}, "door@shop.test").
		Return(&tickets.CheckInResult{Result: models.ScanAlreadyVerified, TicketNumber: "TKT20260101-ABCDE"}, nil)
	router := newRouter(NewHandler(svc, logger.NewNop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tickets/check-in",
		strings.NewReader(`{"token":"`+token+`","location":"Gate A"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "Ticket was already checked in", resp.Message)
	assert.Equal(t, "already_verified", resp.Data.(map[string]interface{})["result"])
}

func TestListScans(t *testing.T) {
	svc := new(MockTicketService)
	svc.On("ListScans", mock.Anything, "t-1").Return([]models.TicketScan{{ID: "s-1", TicketID: "t-1", Result: models.ScanAccepted}}, nil)
	router := newRouter(NewHandler(svc, logger.NewNop()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/tickets/t-1/scans", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec).Data.([]interface{}), 1)
}
