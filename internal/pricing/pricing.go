// Package pricing computes order totals in minor currency units.
package pricing

import (
	"fmt"
	"regexp"
	"strings"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
)

const (
	MinQuantity = 1
	MaxQuantity = 10
)

var paxiCodePattern = regexp.MustCompile(`^P\d{4,5}$`)

// Quote is the full price breakdown persisted with an order.
type Quote struct {
	UnitAmount  int64 `json:"unit_amount"`
	Quantity    int   `json:"quantity"`
	ItemsAmount int64 `json:"items_amount"`
	DeliveryFee int64 `json:"delivery_fee"`
	Subtotal    int64 `json:"subtotal"`
	Discount    int64 `json:"discount"`
	Total       int64 `json:"total"`
}

type Calculator struct {
	fees map[models.DeliveryMethod]int64
}

// NewCalculator takes the fee per delivery method. Methods missing from the map are rejected.
func NewCalculator(fees map[models.DeliveryMethod]int64) *Calculator {
	c := &Calculator{fees: make(map[models.DeliveryMethod]int64, len(fees))}
	for k, v := range fees {
		c.fees[k] = v
	}
	return c
}

func (c *Calculator) DeliveryFee(method models.DeliveryMethod) (int64, error) {
	fee, ok := c.fees[method]
	if !ok {
		return 0, apperr.NewValidation("delivery_method", fmt.Sprintf("unsupported delivery method %q", method))
	}
	return fee, nil
}

// Compute prices quantity units plus delivery less discount. The applied discount never
// exceeds the subtotal, so Total is never negative and Subtotal-Discount == Total.
func (c *Calculator) Compute(unitAmount int64, quantity int, method models.DeliveryMethod, discount int64) (Quote, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return Quote{}, err
	}
	fee, err := c.DeliveryFee(method)
	if err != nil {
		return Quote{}, err
	}
	if discount < 0 {
		discount = 0
	}

	items := unitAmount * int64(quantity)
	subtotal := items + fee
	applied := discount
	if applied > subtotal {
		applied = subtotal
	}

	return Quote{
		UnitAmount:  unitAmount,
		Quantity:    quantity,
		ItemsAmount: items,
		DeliveryFee: fee,
		Subtotal:    subtotal,
		Discount:    applied,
		Total:       subtotal - applied,
	}, nil
}

func ValidateQuantity(quantity int) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return apperr.NewValidation("quantity", fmt.Sprintf("must be between %d and %d", MinQuantity, MaxQuantity))
	}
	return nil
}

// ValidPaxiCode reports whether code looks like a PAXI store code (P followed by 4-5 digits).
func ValidPaxiCode(code string) bool {
	return paxiCodePattern.MatchString(strings.TrimSpace(code))
}

// FormatRand renders minor units as a display amount, e.g. 96000 -> "R960.00".
func FormatRand(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%sR%d.%02d", sign, minor/100, minor%100)
}
