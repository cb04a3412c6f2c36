// Package tickets issues book-launch tickets, reconciles their payments and checks them in
// at the door.
package tickets

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
	"ms-storefront/internal/reference"
	"ms-storefront/internal/store"
	"ms-storefront/internal/tickets/qr"
	"ms-storefront/internal/utils"
)

const maxTransitionAttempts = 3

type Store interface {
	InsertTicket(ctx context.Context, ticket *models.Ticket) error
	FindTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	FindTicketByToken(ctx context.Context, token string) (*models.Ticket, error)
	FindTicketByCheckoutID(ctx context.Context, checkoutID string) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket *models.Ticket, columns ...string) error
	TransitionTicket(ctx context.Context, ticket *models.Ticket, expected models.TicketPaymentStatus, columns ...string) (bool, error)
	MarkTicketVerified(ctx context.Context, id string, at time.Time) (bool, error)
	AppendTicketScan(ctx context.Context, scan *models.TicketScan) error
	ListTicketScans(ctx context.Context, ticketID string) ([]models.TicketScan, error)
}

type CheckoutCreator interface {
	Configured() error
	CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
}

type Notifier interface {
	SendTicketConfirmation(ctx context.Context, f notify.TicketFacts) notify.Result
}

type Deps struct {
	Store      Store
	Checkout   CheckoutCreator
	Notifier   Notifier
	Publisher  kafka.Publisher
	Refs       *reference.Generator
	Storefront config.StorefrontConfig
	Logger     *logger.Logger
}

type TicketService struct {
	store      Store
	checkout   CheckoutCreator
	notifier   Notifier
	publisher  kafka.Publisher
	refs       *reference.Generator
	storefront config.StorefrontConfig
	logger     *logger.Logger
	now        func() time.Time
}

func NewTicketService(d Deps) *TicketService {
	s := &TicketService{
		store:      d.Store,
		checkout:   d.Checkout,
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

type CreateResult struct {
	TicketID          string `json:"ticket_id"`
	TicketNumber      string `json:"ticket_number"`
	VerificationToken string `json:"verification_token"`
	TotalAmount       int64  `json:"total_amount"`
	RedirectURL       string `json:"redirect_url"`
}

// ---------------- TICKETS ----------------

// CreateTicket issues a pending ticket with its QR snapshot and opens a hosted checkout.
// Tickets take no promo codes.
func (s *TicketService) CreateTicket(ctx context.Context, req models.TicketRequest) (*CreateResult, error) {
	if err := s.checkout.Configured(); err != nil {
		s.logger.Error("TICKET", fmt.Sprintf("Refusing ticket, checkout not configured: %v", err))
		return nil, err
	}

	req, err := normalizeTicketRequest(req)
	if err != nil {
		return nil, err
	}

	t, err := s.insertTicket(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.LogTicket("CREATE", t.TicketNumber, fmt.Sprintf("Pending ticket for %d, total %s", t.Quantity, pricing.FormatRand(t.TotalAmount)))

	if err := s.publisher.PublishTicketCreated(ctx, kafka.NewTicketEvent(t)); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish ticket created for %s failed: %v", t.TicketNumber, err))
	}

	session, err := s.checkout.CreateSession(ctx, s.sessionRequest(t))
	if err != nil {
		if _, _, mErr := s.MarkSetupFailed(ctx, t.ID); mErr != nil {
			s.logger.Error("TICKET", fmt.Sprintf("Could not cancel %s after setup failure: %v", t.TicketNumber, mErr))
		}
		return nil, err
	}

	t.CheckoutID = session.ID
	if err := s.store.UpdateTicket(ctx, t, "checkout_id"); err != nil {
		s.logger.Error("TICKET", fmt.Sprintf("Store checkout id %s for %s failed: %v", session.ID, t.TicketNumber, err))
	}

	return &CreateResult{
		TicketID:          t.ID,
		TicketNumber:      t.TicketNumber,
		VerificationToken: t.VerificationToken,
		TotalAmount:       t.TotalAmount,
		RedirectURL:       session.RedirectURL,
	}, nil
}

func (s *TicketService) insertTicket(ctx context.Context, req models.TicketRequest) (*models.Ticket, error) {
	now := s.now().UTC()
	unit := s.storefront.TicketUnitAmount
	t := &models.Ticket{
		ID:            uuid.NewString(),
		FirstName:     req.FirstName,
		Surname:       req.Surname,
		Email:         req.Email,
		Phone:         req.Phone,
		Quantity:      req.Quantity,
		UnitAmount:    unit,
		TotalAmount:   unit * int64(req.Quantity),
		PaymentStatus: models.TicketPending,
		EventName:     s.storefront.EventName,
		EventDate:     s.storefront.EventDate,
		EventVenue:    s.storefront.EventVenue,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var err error
	for attempt := 1; attempt <= reference.MaxAttempts; attempt++ {
		t.TicketNumber = s.refs.Generate(reference.PrefixTicket)
		if t.VerificationToken, err = s.refs.Token(t.TicketNumber); err != nil {
			return nil, fmt.Errorf("generate verification token: %w", err)
		}
		if t.QRPayload, err = qr.BuildPayload(t, now); err != nil {
			return nil, err
		}

		err = s.store.InsertTicket(ctx, t)
		if err == nil {
			return t, nil
		}
		if !store.IsDuplicate(err) {
			return nil, apperr.Store("insert ticket", err)
		}
		s.logger.Warn("TICKET", fmt.Sprintf("Ticket number %s collided (attempt %d/%d)", t.TicketNumber, attempt, reference.MaxAttempts))
	}
	return nil, apperr.Store("insert ticket", err)
}

func (s *TicketService) sessionRequest(t *models.Ticket) payment.SessionRequest {
	q := url.Values{"ticket": {t.TicketNumber}, "token": {t.VerificationToken}}.Encode()
	base := strings.TrimRight(s.storefront.PublicURL, "/")
	return payment.SessionRequest{
		RecordID:   t.ID,
		Amount:     t.TotalAmount,
		Subtotal:   t.TotalAmount,
		CancelURL:  base + "/tickets/cancelled?" + q,
		SuccessURL: base + "/tickets/success?" + q,
		FailureURL: base + "/tickets/failed?" + q,
		Metadata: map[string]string{
			"ticketId":     t.ID,
			"ticketNumber": t.TicketNumber,
			"type":         "ticket",
		},
		LineItems: payment.ProductLines(fmt.Sprintf("Ticket - %s", t.EventName), t.Quantity, t.UnitAmount, "", 0),
	}
}

// Lookup finds a ticket by its verification token. The token is the only public handle.
func (s *TicketService) Lookup(ctx context.Context, token string) (*models.Ticket, error) {
	token = strings.TrimSpace(token)
	if !reference.Valid(reference.PrefixTicket, ticketNumberOf(token)) {
		return nil, &apperr.NotFoundError{Resource: "ticket"}
	}
	t, err := s.store.FindTicketByToken(ctx, token)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, &apperr.NotFoundError{Resource: "ticket"}
		}
		return nil, apperr.Store("find ticket", err)
	}
	t.CheckoutID = ""
	t.PaymentID = ""
	return t, nil
}

// QRCode renders the payload stored at issuance. Unpaid tickets have no usable code.
func (s *TicketService) QRCode(ctx context.Context, token string, size int) ([]byte, error) {
	t, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.PaymentStatus != models.TicketPaid {
		return nil, &apperr.NotFoundError{Resource: "ticket"}
	}
	return qr.EncodePNG(t.QRPayload, size)
}

func (s *TicketService) SendConfirmation(ctx context.Context, token string) (notify.Result, error) {
	t, err := s.Lookup(ctx, token)
	if err != nil {
		return notify.Result{}, err
	}
	switch t.PaymentStatus {
	case models.TicketPaid:
	case models.TicketCancelled:
		return notify.Result{}, apperr.NewValidation("payment_status", "ticket is cancelled")
	default:
		return notify.Result{}, apperr.NewValidation("payment_status", "ticket has not been paid")
	}

	res := s.notifier.SendTicketConfirmation(ctx, notify.TicketFacts{
		FirstName:    t.FirstName,
		Surname:      t.Surname,
		Email:        t.Email,
		TicketNumber: t.TicketNumber,
		Quantity:     t.Quantity,
		TotalAmount:  t.TotalAmount,
		EventName:    t.EventName,
		EventDate:    t.EventDate,
		EventVenue:   t.EventVenue,
		TicketURL:    strings.TrimRight(s.storefront.PublicURL, "/") + "/tickets/view?" + url.Values{"token": {t.VerificationToken}}.Encode(),
	})
	if !res.Success {
		s.logger.LogTicket("EMAIL", t.TicketNumber, fmt.Sprintf("Confirmation not sent (%s): %s", res.ErrorKind, res.Error))
	}
	return res, nil
}

// ticketNumberOf strips the secret suffix from a verification token.
func ticketNumberOf(token string) string {
	i := strings.LastIndex(token, "-")
	if i <= 0 {
		return ""
	}
	return token[:i]
}

func normalizeTicketRequest(req models.TicketRequest) (models.TicketRequest, error) {
	req.FirstName = utils.CleanText(req.FirstName, 80)
	req.Surname = utils.CleanText(req.Surname, 80)
	req.Email = utils.NormalizeEmail(req.Email)
	req.Phone = utils.NormalizePhone(req.Phone)

	v := &apperr.ValidationError{}
	if req.FirstName == "" {
		v.Add("first_name", "is required")
	}
	if req.Surname == "" {
		v.Add("surname", "is required")
	}
	if !utils.ValidEmail(req.Email) {
		v.Add("email", "must be a valid email address")
	}
	if !utils.ValidPhone(req.Phone) {
		v.Add("phone", "must be a valid phone number")
	}
	if err := pricing.ValidateQuantity(req.Quantity); err != nil {
		v.Add("quantity", apperr.FieldErrors(err)["quantity"])
	}
	return req, v.OrNil()
}
