// Package server assembles the storefront HTTP surface: middleware, public routes and the
// admin group behind token auth.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	analytics_api "ms-storefront/internal/analytics/api"
	"ms-storefront/internal/auth"
	"ms-storefront/internal/booking/booking_api"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/order/order_api"
	"ms-storefront/internal/promo/promo_api"
	"ms-storefront/internal/ratelimit"
	"ms-storefront/internal/tickets/ticket_api"
	"ms-storefront/internal/utils"
	"ms-storefront/internal/webhook"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	Orders    *order_api.Handler
	Tickets   *ticket_api.Handler
	Bookings  *booking_api.Handler
	Promos    *promo_api.Handler
	Analytics *analytics_api.Handler
	Webhook   *webhook.Handler
	Health    http.Handler

	// PromoLimiter throttles /api/promo/verify. nil disables it.
	PromoLimiter *ratelimit.Limiter
	// Verifier guards /api/admin. nil answers 503 there.
	Verifier       auth.Verifier
	AdminRole      string
	AllowedOrigins []string
	Logger         *logger.Logger
}

func NewRouter(h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(chiware.RequestID)
	r.Use(chiware.RealIP)
	r.Use(chiware.Recoverer)
	r.Use(BodyLimit(maxBodyBytes))
	r.Use(SecurityHeaders)
	r.Use(RequestLogger(h.Logger))
	r.Use(CORS(h.AllowedOrigins).Handler)

	if h.Health != nil {
		r.Method(http.MethodGet, "/health", h.Health)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.CreateOrder)
			r.Get("/track/{trackingNumber}", h.Orders.TrackOrder)
			r.Post("/track/{trackingNumber}/confirmation", h.Orders.SendConfirmation)
		})

		r.Group(func(r chi.Router) {
			if h.PromoLimiter != nil {
				r.Use(h.PromoLimiter.Middleware)
			}
			r.Post("/promo/verify", h.Orders.VerifyPromo)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", h.Tickets.CreateTicket)
			r.Get("/{token}", h.Tickets.ViewTicket)
			r.Get("/{token}/qr.png", h.Tickets.TicketQR)
			r.Post("/{token}/confirmation", h.Tickets.SendConfirmation)
		})

		r.Post("/bookings", h.Bookings.CreateBooking)
		r.Post("/webhooks/payments", h.Webhook.Handle)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Middleware(h.Verifier, h.AdminRole, h.Logger))

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/", h.Orders.GetOrder)
				r.Patch("/status", h.Orders.UpdateStatus)
				r.Delete("/", h.Orders.DeleteOrder)
			})

			r.Post("/tickets/check-in", h.Tickets.CheckIn)
			r.Get("/tickets/{ticketId}/scans", h.Tickets.ListScans)

			r.Post("/promo-codes", h.Promos.CreatePromo)
			r.Get("/promo-codes/{code}", h.Promos.GetPromo)
			r.Patch("/promo-codes/{code}", h.Promos.SetActive)

			r.Route("/bookings/{bookingId}", func(r chi.Router) {
				r.Get("/", h.Bookings.GetBooking)
				r.Patch("/status", h.Bookings.UpdateStatus)
				r.Delete("/", h.Bookings.DeleteBooking)
			})

			h.Analytics.RegisterRoutes(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", http.StatusText(http.StatusNotFound)))
	})
	return r
}
