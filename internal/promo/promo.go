package promo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonRequired     Reason = "required"
	ReasonInvalidCode  Reason = "invalid_code"
	ReasonExpired      Reason = "expired"
	ReasonLimitReached Reason = "usage_limit_reached"
)

// Store is the read side the evaluator needs. A miss must come back as *apperr.NotFoundError.
type Store interface {
	FindActivePromoCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// Evaluation is the outcome of checking a promo code against the current time.
type Evaluation struct {
	Valid          bool      `json:"valid"`
	Code           string    `json:"code,omitempty"`
	DiscountAmount int64     `json:"discount_amount"`
	Reason         Reason    `json:"reason,omitempty"`
	Message        string    `json:"message"`
	Metadata       *Metadata `json:"metadata,omitempty"`
}

// Metadata is presentational only.
type Metadata struct {
	Description   string     `json:"description"`
	UsageLimit    int        `json:"usage_limit"`
	TimesUsed     int        `json:"times_used"`
	RemainingUses int        `json:"remaining_uses,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type Evaluator struct {
	store  Store
	logger *logger.Logger
	now    func() time.Time
}

func NewEvaluator(store Store, log *logger.Logger) *Evaluator {
	return &Evaluator{store: store, logger: log, now: time.Now}
}

// WithClock replaces the time source.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Normalize upper-cases and trims a user supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate checks a code without consuming it. Store failures are returned as errors rather
// than rejections so callers can tell an outage from a bad code.
func (e *Evaluator) Evaluate(ctx context.Context, raw string) (Evaluation, error) {
	code := Normalize(raw)
	if code == "" {
		return Evaluation{Reason: ReasonRequired, Message: "Promo code is required"}, nil
	}

	pc, err := e.store.FindActivePromoCode(ctx, code)
	if err != nil {
		if apperr.IsNotFound(err) {
			e.logger.Debug("PROMO", fmt.Sprintf("Rejected unknown or inactive code %s", code))
			return Evaluation{Code: code, Reason: ReasonInvalidCode, Message: "Invalid promo code"}, nil
		}
		return Evaluation{}, apperr.Store("find promo code", err)
	}

	// Inactive rows are filtered by the store already; checked again so a store that ignores
	// the flag still cannot leak the distinction.
	if !pc.IsActive {
		return Evaluation{Code: code, Reason: ReasonInvalidCode, Message: "Invalid promo code"}, nil
	}

	if pc.ExpiresAt != nil && pc.ExpiresAt.Before(e.now()) {
		return Evaluation{
			Code:    code,
			Reason:  ReasonExpired,
			Message: fmt.Sprintf("Promo code expired on %s", pc.ExpiresAt.UTC().Format("2006-01-02")),
		}, nil
	}

	if pc.UsageLimit > 0 && pc.TimesUsed >= pc.UsageLimit {
		return Evaluation{Code: code, Reason: ReasonLimitReached, Message: "Promo code usage limit has been reached"}, nil
	}

	meta := &Metadata{
		Description: pc.Description,
		UsageLimit:  pc.UsageLimit,
		TimesUsed:   pc.TimesUsed,
		ExpiresAt:   pc.ExpiresAt,
	}
	if pc.UsageLimit > 0 {
		meta.RemainingUses = pc.UsageLimit - pc.TimesUsed
	}

	return Evaluation{
		Valid:          true,
		Code:           code,
		DiscountAmount: pc.DiscountAmount,
		Message:        "Promo code applied",
		Metadata:       meta,
	}, nil
}
