package promo

import (
	"context"
	"regexp"
	"time"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/store"
	"ms-storefront/internal/utils"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

type AdminStore interface {
	InsertPromoCode(ctx context.Context, p *models.PromoCode) error
	FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	SetPromoCodeActive(ctx context.Context, code string, active bool) error
}

// Admin manages promo codes from the back office. Codes are never deleted, only deactivated.
type Admin struct {
	store  AdminStore
	logger *logger.Logger
	now    func() time.Time
}

func NewAdmin(s AdminStore, log *logger.Logger) *Admin {
	return &Admin{store: s, logger: log, now: time.Now}
}

func (a *Admin) Create(ctx context.Context, req models.PromoCodeRequest) (*models.PromoCode, error) {
	code := Normalize(req.Code)
	v := &apperr.ValidationError{}
	if !codePattern.MatchString(code) {
		v.Add("code", "Use 3 to 32 letters, digits, dashes or underscores")
	}
	if req.DiscountAmount <= 0 {
		v.Add("discount_amount", "Discount must be greater than zero")
	}
	if req.UsageLimit < 0 {
		v.Add("usage_limit", "Usage limit cannot be negative")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(a.now()) {
		v.Add("expires_at", "Expiry must be in the future")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	p := &models.PromoCode{
		Code:           code,
		IsActive:       true,
		Description:    utils.CleanText(req.Description, 200),
		DiscountAmount: req.DiscountAmount,
		UsageLimit:     req.UsageLimit,
		ExpiresAt:      req.ExpiresAt,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := a.store.InsertPromoCode(ctx, p); err != nil {
		if store.IsDuplicate(err) {
			return nil, apperr.NewValidation("code", "This code already exists")
		}
		return nil, err
	}
	a.logger.Info("PROMO", "Created promo code "+code)
	return p, nil
}

// SetActive flips the active flag and returns the updated code.
func (a *Admin) SetActive(ctx context.Context, raw string, active bool) (*models.PromoCode, error) {
	code := Normalize(raw)
	if err := a.store.SetPromoCodeActive(ctx, code, active); err != nil {
		return nil, err
	}
	state := "Deactivated"
	if active {
		state = "Activated"
	}
	a.logger.Info("PROMO", state+" promo code "+code)
	return a.store.FindPromoCode(ctx, code)
}

func (a *Admin) Get(ctx context.Context, raw string) (*models.PromoCode, error) {
	return a.store.FindPromoCode(ctx, Normalize(raw))
}
