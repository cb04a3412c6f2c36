package order

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/config"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/notify"
	"ms-storefront/internal/payment"
	"ms-storefront/internal/pricing"
	"ms-storefront/internal/promo"
	"ms-storefront/internal/reference"
	"ms-storefront/internal/store"
	"ms-storefront/internal/utils"
)

// PromoReserver consumes and returns promo code uses.
type PromoReserver interface {
	ReservePromoUse(ctx context.Context, code string) (bool, error)
	ReleasePromoUse(ctx context.Context, code string) error
}

type CheckoutCreator interface {
	Configured() error
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, f notify.OrderFacts) notify.Result
}

type Deps struct {
	Store      Store
	Promos     PromoReserver
	Evaluator  *promo.Evaluator
	Pricing    *pricing.Calculator
	Checkout   CheckoutCreator
	Lifecycle  *Lifecycle
	Notifier   Notifier
	Publisher  kafka.Publisher
	Refs       *reference.Generator
	Storefront config.StorefrontConfig
	Logger     *logger.Logger
}

type Service struct {
	store      Store
	promos     PromoReserver
	evaluator  *promo.Evaluator
	pricing    *pricing.Calculator
	checkout   CheckoutCreator
	lifecycle  *Lifecycle
	notifier   Notifier
	publisher  kafka.Publisher
	refs       *reference.Generator
	storefront config.StorefrontConfig
	logger     *logger.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:      d.Store,
		promos:     d.Promos,
		evaluator:  d.Evaluator,
		pricing:    d.Pricing,
		checkout:   d.Checkout,
		lifecycle:  d.Lifecycle,
		notifier:   d.Notifier,
		publisher:  d.Publisher,
		refs:       d.Refs,
		storefront: d.Storefront,
		logger:     d.Logger,
		now:        time.Now,
	}
	if s.publisher == nil {
		s.publisher = kafka.Nop{}
	}
	if s.refs == nil {
		s.refs = reference.New()
	}
	return s
}

// CreateResult is returned to the storefront after a checkout session exists.
type CreateResult struct {
	OrderID        string        `json:"order_id"`
	TrackingNumber string        `json:"tracking_number"`
	RedirectURL    string        `json:"redirect_url"`
	Quote          pricing.Quote `json:"quote"`
}

// ---------------- ORDERS ----------------

// CreateOrder validates the form, prices it, persists a pending order and opens a hosted
// checkout for it. A gateway failure cancels the order and returns the GatewayError.
func (s *Service) CreateOrder(ctx context.Context, req models.OrderRequest) (*CreateResult, error) {
	if err := s.checkout.Configured(); err != nil {
		s.logger.Error("ORDER", fmt.Sprintf("Refusing order, checkout not configured: %v", err))
		return nil, err
	}

	req, err := normalizeOrderRequest(req)
	if err != nil {
		return nil, err
	}

	var discount int64
	if req.PromoCode != "" {
		ev, err := s.evaluator.Evaluate(ctx, req.PromoCode)
		if err != nil {
			return nil, err
		}
		if !ev.Valid {
			return nil, apperr.NewValidation("promo_code", ev.Message)
		}
		req.PromoCode = ev.Code
		discount = ev.DiscountAmount
	}

	quote, err := s.pricing.Compute(s.storefront.BookUnitAmount, req.Quantity, req.DeliveryMethod, discount)
	if err != nil {
		return nil, err
	}

	if req.PromoCode != "" {
		ok, err := s.promos.ReservePromoUse(ctx, req.PromoCode)
		if err != nil {
			return nil, apperr.Store("reserve promo use", err)
		}
		if !ok {
			return nil, apperr.NewValidation("promo_code", "Promo code usage limit has been reached")
		}
	}

	o, err := s.insertOrder(ctx, req, quote)
	if err != nil {
		s.releasePromo(ctx, req.PromoCode)
		return nil, err
	}
	s.logger.LogOrder("CREATE", o.TrackingNumber, fmt.Sprintf("Pending order for %d x %s, total %s", o.Quantity, o.ProductName, pricing.FormatRand(o.FinalPrice)))

	if err := s.publisher.PublishOrderCreated(ctx, kafka.NewOrderEvent(o, "", NoteOrderReceived, models.AuthorSystem)); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish order created for %s failed: %v", o.TrackingNumber, err))
	}

	session, err := s.checkout.CreateSession(ctx, s.sessionRequest(o, quote))
	if err != nil {
		if _, _, mErr := s.lifecycle.MarkSetupFailed(ctx, o.ID); mErr != nil {
			s.logger.Error("ORDER", fmt.Sprintf("Could not cancel %s after setup failure: %v", o.TrackingNumber, mErr))
		}
		s.releasePromo(ctx, req.PromoCode)
		return nil, err
	}

	o.CheckoutID = session.ID
	if err := s.store.UpdateOrder(ctx, o, "checkout_id"); err != nil {
		// the webhook can still resolve the order through metadata.orderId
		s.logger.Error("ORDER", fmt.Sprintf("Store checkout id %s for %s failed: %v", session.ID, o.TrackingNumber, err))
	}

	return &CreateResult{
		OrderID:        o.ID,
		TrackingNumber: o.TrackingNumber,
		RedirectURL:    session.RedirectURL,
		Quote:          quote,
	}, nil
}

// insertOrder writes the order with a fresh tracking number, regenerating it when it
// collides with an existing one.
func (s *Service) insertOrder(ctx context.Context, req models.OrderRequest, quote pricing.Quote) (*models.Order, error) {
	now := s.now().UTC()
	o := &models.Order{
		ID:              uuid.NewString(),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ProductName:     s.storefront.ProductName,
		Quantity:        quote.Quantity,
		BaseAmount:      quote.UnitAmount,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryFee:     quote.DeliveryFee,
		PromoCode:       req.PromoCode,
		DiscountAmount:  quote.Discount,
		FinalPrice:      quote.Total,
		PaxiStoreCode:   req.PaxiStoreCode,
		DeliveryAddress: req.DeliveryAddress,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var err error
	for attempt := 1; attempt <= reference.MaxAttempts; attempt++ {
		o.TrackingNumber = s.refs.Generate(reference.PrefixOrder)
		first := &models.TrackingEvent{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			Status:    models.OrderPending,
			Note:      NoteOrderReceived,
			Author:    models.AuthorSystem,
			CreatedAt: now,
		}
		err = s.store.InsertOrder(ctx, o, first)
		if err == nil {
			return o, nil
		}
		if !store.IsDuplicate(err) {
			return nil, apperr.Store("insert order", err)
		}
		s.logger.Warn("ORDER", fmt.Sprintf("Tracking number %s collided (attempt %d/%d)", o.TrackingNumber, attempt, reference.MaxAttempts))
	}
	return nil, apperr.Store("insert order", err)
}

func (s *Service) releasePromo(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := s.promos.ReleasePromoUse(ctx, code); err != nil {
		s.logger.Error("PROMO", fmt.Sprintf("Release reserved use of %s failed: %v", code, err))
	}
}

func (s *Service) sessionRequest(o *models.Order, quote pricing.Quote) payment.SessionRequest {
	q := url.Values{"tracking": {o.TrackingNumber}}.Encode()
	base := strings.TrimRight(s.storefront.PublicURL, "/")
	return payment.SessionRequest{
		RecordID:   o.ID,
		Amount:     quote.Total,
		Subtotal:   quote.Subtotal,
		Discount:   quote.Discount,
		CancelURL:  base + "/order/cancelled?" + q,
		SuccessURL: base + "/order/success?" + q,
		FailureURL: base + "/order/failed?" + q,
		Metadata: map[string]string{
			"orderId":        o.ID,
			"trackingNumber": o.TrackingNumber,
			"type":           "order",
		},
		LineItems: payment.ProductLines(o.ProductName, o.Quantity, o.BaseAmount, deliveryLabel(o.DeliveryMethod), o.DeliveryFee),
	}
}

// Track returns an order and its history for the public tracking page. Malformed and
// unknown tracking numbers get the same NotFoundError.
func (s *Service) Track(ctx context.Context, trackingNumber string) (*models.OrderTracking, error) {
	o, err := s.findByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListTrackingEvents(ctx, o.ID)
	if err != nil {
		return nil, apperr.Store("list tracking events", err)
	}
	o.CheckoutID = ""
	o.PaymentID = ""
	return &models.OrderTracking{Order: o, Events: events}, nil
}

// SendConfirmation emails the order summary. It runs on the customer's return from a
// successful checkout and never changes the order.
func (s *Service) SendConfirmation(ctx context.Context, trackingNumber string) (notify.Result, error) {
	o, err := s.findByTracking(ctx, trackingNumber)
	if err != nil {
		return notify.Result{}, err
	}
	if o.Status == models.OrderCancelled || o.Status == models.OrderRefunded {
		return notify.Result{}, apperr.NewValidation("status", fmt.Sprintf("order is %s", o.Status))
	}

	res := s.notifier.SendOrderConfirmation(ctx, notify.OrderFacts{
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		TrackingNumber:  o.TrackingNumber,
		ProductName:     o.ProductName,
		Quantity:        o.Quantity,
		UnitAmount:      o.BaseAmount,
		DeliveryMethod:  string(o.DeliveryMethod),
		DeliveryFee:     o.DeliveryFee,
		DiscountAmount:  o.DiscountAmount,
		FinalPrice:      o.FinalPrice,
		PaxiStoreCode:   o.PaxiStoreCode,
		DeliveryAddress: o.DeliveryAddress,
		TrackingURL:     strings.TrimRight(s.storefront.PublicURL, "/") + "/track?" + url.Values{"tracking": {o.TrackingNumber}}.Encode(),
	})
	if !res.Success {
		s.logger.LogOrder("EMAIL", o.TrackingNumber, fmt.Sprintf("Confirmation not sent (%s): %s", res.ErrorKind, res.Error))
	}
	return res, nil
}

func (s *Service) findByTracking(ctx context.Context, trackingNumber string) (*models.Order, error) {
	tn := strings.ToUpper(strings.TrimSpace(trackingNumber))
	if !reference.Valid(reference.PrefixOrder, tn) {
		return nil, &apperr.NotFoundError{Resource: "order"}
	}
	o, err := s.store.FindOrderByTrackingNumber(ctx, tn)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, &apperr.NotFoundError{Resource: "order"}
		}
		return nil, apperr.Store("find order", err)
	}
	return o, nil
}

// GetOrder is the admin view with payment references intact.
func (s *Service) GetOrder(ctx context.Context, id string) (*models.OrderTracking, error) {
	o, err := s.store.FindOrderByID(ctx, id)
	if err != nil {
		return nil, apperr.Store("find order", err)
	}
	events, err := s.store.ListTrackingEvents(ctx, o.ID)
	if err != nil {
		return nil, apperr.Store("list tracking events", err)
	}
	return &models.OrderTracking{Order: o, Events: events}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, note string) (*models.Order, error) {
	return s.lifecycle.AdminUpdateStatus(ctx, id, status, utils.CleanText(note, 500))
}

// DeleteOrder removes the order and its history. It is only reachable from the admin API.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	if err := s.store.DeleteOrder(ctx, id); err != nil {
		return apperr.Store("delete order", err)
	}
	s.logger.LogOrder("DELETE", id, "Order deleted by admin")
	return nil
}

func deliveryLabel(m models.DeliveryMethod) string {
	switch m {
	case models.DeliveryPaxi:
		return "PAXI delivery"
	case models.DeliveryDoorToDoor:
		return "Door-to-door delivery"
	default:
		return string(m)
	}
}
