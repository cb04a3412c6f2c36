package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skip2/go-qrcode"

	"ms-storefront/internal/models"
)

const DefaultSize = 256

// BuildPayload snapshots the ticket holder and event into the JSON string stored on the
// ticket and embedded in its QR code. The payload is taken once at issuance.
func BuildPayload(t *models.Ticket, issuedAt time.Time) (string, error) {
	data, err := json.Marshal(models.TicketQRPayload{
		TicketNumber:      t.TicketNumber,
		VerificationToken: t.VerificationToken,
		Name:              t.FirstName,
		Surname:           t.Surname,
		Email:             t.Email,
		Quantity:          t.Quantity,
		Event:             t.EventName,
		Date:              t.EventDate,
		Venue:             t.EventVenue,
		IssuedAt:          issuedAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal qr payload: %w", err)
	}
	return string(data), nil
}

// ParsePayload reads a scanned payload back. Only the token is trusted by check-in; the
// rest is informational.
func ParsePayload(s string) (*models.TicketQRPayload, error) {
	var p models.TicketQRPayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("invalid qr payload: %w", err)
	}
	if p.VerificationToken == "" {
		return nil, errors.New("qr payload has no verification token")
	}
	return &p, nil
}

// EncodePNG renders the stored payload as a QR PNG.
func EncodePNG(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}
