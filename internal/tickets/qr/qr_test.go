package qr

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/models"
)

func sampleTicket() *models.Ticket {
	return &models.Ticket{
		TicketNumber:      "TKT20260101-AB12C",
		VerificationToken: "TKT20260101-AB12C-QWERTYUIOP",
		FirstName:         "Sipho",
		Surname:           "Dlamini",
		Email:             "sipho@example.com",
		Quantity:          2,
		EventName:         "Book Launch",
		EventDate:         "2026-12-05 10:00",
		EventVenue:        "Main Hall",
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	issued := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	payload, err := BuildPayload(sampleTicket(), issued)
	require.NoError(t, err)

	p, err := ParsePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "TKT20260101-AB12C-QWERTYUIOP", p.VerificationToken)
	assert.Equal(t, 2, p.Quantity)
	assert.True(t, p.IssuedAt.Equal(issued))
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	_, err := ParsePayload("not json")
	assert.Error(t, err)

	_, err = ParsePayload(`{"ticketNumber":"TKT1"}`)
	assert.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	payload, err := BuildPayload(sampleTicket(), time.Now())
	require.NoError(t, err)

	png, err := EncodePNG(payload, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
