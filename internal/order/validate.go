package order

import (
	"strings"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
	"ms-storefront/internal/pricing"
	"ms-storefront/internal/utils"
)

const minAddressLength = 10

// normalizeOrderRequest cleans the checkout form and reports every invalid field at once.
// The delivery detail that does not belong to the chosen method is dropped.
func normalizeOrderRequest(req models.OrderRequest) (models.OrderRequest, error) {
	req.CustomerName = utils.CleanText(req.CustomerName, 120)
	req.CustomerEmail = utils.NormalizeEmail(req.CustomerEmail)
	req.CustomerPhone = utils.NormalizePhone(req.CustomerPhone)
	req.PaxiStoreCode = strings.ToUpper(strings.TrimSpace(req.PaxiStoreCode))
	req.DeliveryAddress = utils.CleanText(req.DeliveryAddress, 500)
	req.DeliveryMethod = models.DeliveryMethod(strings.ToLower(strings.TrimSpace(string(req.DeliveryMethod))))
	req.PromoCode = strings.TrimSpace(req.PromoCode)

	v := &apperr.ValidationError{}
	if req.CustomerName == "" {
		v.Add("customer_name", "is required")
	}
	if !utils.ValidEmail(req.CustomerEmail) {
		v.Add("customer_email", "must be a valid email address")
	}
	if !utils.ValidPhone(req.CustomerPhone) {
		v.Add("customer_phone", "must be a valid phone number")
	}
	if err := pricing.ValidateQuantity(req.Quantity); err != nil {
		v.Add("quantity", apperr.FieldErrors(err)["quantity"])
	}

	switch req.DeliveryMethod {
	case models.DeliveryPaxi:
		req.DeliveryAddress = ""
		if !pricing.ValidPaxiCode(req.PaxiStoreCode) {
			v.Add("paxi_store_code", "must be P followed by 4 or 5 digits")
		}
	case models.DeliveryDoorToDoor:
		req.PaxiStoreCode = ""
		if len([]rune(req.DeliveryAddress)) < minAddressLength {
			v.Add("delivery_address", "is required for door-to-door delivery")
		}
	default:
		v.Add("delivery_method", "must be paxi or door_to_door")
	}

	return req, v.OrNil()
}
