package store

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
)

const (
	activeTrue  = "true"
	activeFalse = "false"
)

// activeSpellings are the lower-cased is_active values that read as active.
var activeSpellings = []string{"true", "t", "1"}

// promoCodeRow mirrors the promo_codes table, where is_active is stored as text.
type promoCodeRow struct {
	bun.BaseModel `bun:"table:promo_codes,alias:pc"`

	Code           string     `bun:"code,pk"`
	IsActive       string     `bun:"is_active,notnull"`
	Description    string     `bun:"description"`
	DiscountAmount int64      `bun:"discount_amount,notnull"`
	UsageLimit     int        `bun:"usage_limit,notnull"`
	TimesUsed      int        `bun:"times_used,notnull"`
	ExpiresAt      *time.Time `bun:"expires_at"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
}

// parseActive accepts the spellings legacy rows were written with. ReservePromoUse matches
// the same set in SQL.
func parseActive(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range activeSpellings {
		if v == s {
			return true
		}
	}
	return false
}

func formatActive(b bool) string {
	if b {
		return activeTrue
	}
	return activeFalse
}

func (r *promoCodeRow) toModel() *models.PromoCode {
	return &models.PromoCode{
		Code:           r.Code,
		IsActive:       parseActive(r.IsActive),
		Description:    r.Description,
		DiscountAmount: r.DiscountAmount,
		UsageLimit:     r.UsageLimit,
		TimesUsed:      r.TimesUsed,
		ExpiresAt:      r.ExpiresAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func promoRowFromModel(p *models.PromoCode) *promoCodeRow {
	return &promoCodeRow{
		Code:           p.Code,
		IsActive:       formatActive(p.IsActive),
		Description:    p.Description,
		DiscountAmount: p.DiscountAmount,
		UsageLimit:     p.UsageLimit,
		TimesUsed:      p.TimesUsed,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (s *Store) InsertPromoCode(ctx context.Context, p *models.PromoCode) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.Bun.NewInsert().Model(promoRowFromModel(p)).Exec(ctx)
	return mapErr("insert promo code", "promo code", p.Code, err)
}

// FindPromoCode returns the code regardless of its active flag.
func (s *Store) FindPromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var row promoCodeRow
	err := s.Bun.NewSelect().
		Model(&row).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("find promo code", "promo code", code, err)
	}
	return row.toModel(), nil
}

// FindActivePromoCode returns the code only if it is active. Inactive and unknown codes
// produce the same NotFoundError.
func (s *Store) FindActivePromoCode(ctx context.Context, code string) (*models.PromoCode, error) {
	p, err := s.FindPromoCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, &apperr.NotFoundError{Resource: "promo code", Key: code}
	}
	return p, nil
}

func (s *Store) SetPromoCodeActive(ctx context.Context, code string, active bool) error {
	res, err := s.Bun.NewUpdate().
		Model((*promoCodeRow)(nil)).
		Set("is_active = ?", formatActive(active)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Exec(ctx)
	if err != nil {
		return mapErr("update promo code", "promo code", code, err)
	}
	if n, _ := rowsAffected(res); n == 0 {
		return &apperr.NotFoundError{Resource: "promo code", Key: code}
	}
	return nil
}

// ReservePromoUse increments times_used only while the code is active and under its limit.
// It reports false when the increment was refused.
func (s *Store) ReservePromoUse(ctx context.Context, code string) (bool, error) {
	res, err := s.Bun.NewUpdate().
		Model((*promoCodeRow)(nil)).
		Set("times_used = times_used + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Where("LOWER(TRIM(is_active)) IN (?)", bun.In(activeSpellings)).
		Where("(usage_limit = 0 OR times_used < usage_limit)").
		Exec(ctx)
	if err != nil {
		return false, mapErr("reserve promo use", "promo code", code, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, mapErr("reserve promo use", "promo code", code, err)
	}
	return n > 0, nil
}

// ReleasePromoUse undoes a reservation whose order was never created.
func (s *Store) ReleasePromoUse(ctx context.Context, code string) error {
	_, err := s.Bun.NewUpdate().
		Model((*promoCodeRow)(nil)).
		Set("times_used = times_used - 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("code = ?", code).
		Where("times_used > 0").
		Exec(ctx)
	return mapErr("release promo use", "promo code", code, err)
}
