package promo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/store/storetest"
)

func TestAdminCreateAndToggle(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	admin := NewAdmin(s, logger.NewNop())

	created, err := admin.Create(ctx, models.PromoCodeRequest{Code: " launch50 ", Description: "Launch week", DiscountAmount: 5000, UsageLimit: 10})
	require.NoError(t, err)
	assert.Equal(t, "LAUNCH50", created.Code)
	assert.True(t, created.IsActive)

	_, err = admin.Create(ctx, models.PromoCodeRequest{Code: "LAUNCH50", DiscountAmount: 100})
	require.Error(t, err)
	assert.Contains(t, apperr.FieldErrors(err), "code")

	off, err := admin.SetActive(ctx, "launch50", false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)

	ev, err := NewEvaluator(s, logger.NewNop()).Evaluate(ctx, "LAUNCH50")
	require.NoError(t, err)
	assert.False(t, ev.Valid)
	assert.Equal(t, ReasonInvalidCode, ev.Reason)

	on, err := admin.SetActive(ctx, "LAUNCH50", true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)

	_, err = admin.SetActive(ctx, "NOPE", true)
	assert.True(t, apperr.IsNotFound(err))
}

func TestAdminCreateValidation(t *testing.T) {
	admin := NewAdmin(storetest.New(t), logger.NewNop())
	admin.now = func() time.Time { return fixedNow }
	past := fixedNow.Add(-time.Hour)

	_, err := admin.Create(context.Background(), models.PromoCodeRequest{Code: "x!", DiscountAmount: 0, UsageLimit: -1, ExpiresAt: &past})
	require.Error(t, err)
	fields := apperr.FieldErrors(err)
	for _, f := range []string{"code", "discount_amount", "usage_limit", "expires_at"} {
		assert.Contains(t, fields, f)
	}
}

func TestAdminCreateInactive(t *testing.T) {
	inactive := false
	p, err := NewAdmin(storetest.New(t), logger.NewNop()).Create(context.Background(), models.PromoCodeRequest{Code: "LATER", DiscountAmount: 1000, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, p.IsActive)
}
