package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketPaymentStatus string

const (
	TicketPending   TicketPaymentStatus = "pending"
	TicketPaid      TicketPaymentStatus = "paid"
	TicketCancelled TicketPaymentStatus = "cancelled"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                string              `bun:"id,pk" json:"id"`
	TicketNumber      string              `bun:"ticket_number,unique,notnull" json:"ticket_number"`
	VerificationToken string              `bun:"verification_token,unique,notnull" json:"verification_token"`
	FirstName         string              `bun:"first_name,notnull" json:"first_name"`
	Surname           string              `bun:"surname,notnull" json:"surname"`
	Email             string              `bun:"email,notnull" json:"email"`
	Phone             string              `bun:"phone,notnull" json:"phone"`
	Quantity          int                 `bun:"quantity,notnull" json:"quantity"`
	UnitAmount        int64               `bun:"unit_amount,notnull" json:"unit_amount"`
	TotalAmount       int64               `bun:"total_amount,notnull" json:"total_amount"`
	CheckoutID        string              `bun:"checkout_id,nullzero" json:"checkout_id,omitempty"`
	PaymentID         string              `bun:"payment_id,nullzero" json:"payment_id,omitempty"`
	PaymentStatus     TicketPaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	IsVerified        bool                `bun:"is_verified,notnull" json:"is_verified"`
	VerifiedAt        *time.Time          `bun:"verified_at" json:"verified_at,omitempty"`
	EventName         string              `bun:"event_name,notnull" json:"event_name"`
	EventDate         string              `bun:"event_date,notnull" json:"event_date"`
	EventVenue        string              `bun:"event_venue,notnull" json:"event_venue"`
	QRPayload         string              `bun:"qr_payload,notnull" json:"qr_payload"`
	CreatedAt         time.Time           `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time           `bun:"updated_at,notnull" json:"updated_at"`
}

type ScanResult string

const (
	ScanAccepted        ScanResult = "accepted"
	ScanAlreadyVerified ScanResult = "already_verified"
	ScanRejected        ScanResult = "rejected"
)

// TicketScan rows are an append-only audit trail of check-in attempts.
type TicketScan struct {
	bun.BaseModel `bun:"table:ticket_scans"`

	ID        string     `bun:"id,pk" json:"id"`
	TicketID  string     `bun:"ticket_id,notnull" json:"ticket_id"`
	ScannedBy string     `bun:"scanned_by" json:"scanned_by"`
	Location  string     `bun:"location" json:"location"`
	Note      string     `bun:"note" json:"note"`
	Result    ScanResult `bun:"result,notnull" json:"result"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
}

type TicketRequest struct {
	FirstName string `json:"first_name"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Quantity  int    `json:"quantity"`
}

type CheckInRequest struct {
	Token     string `json:"token,omitempty"`
	QRPayload string `json:"qr_payload,omitempty"`
	Location  string `json:"location,omitempty"`
	Note      string `json:"note,omitempty"`
}

// TicketQRPayload is the snapshot embedded in the ticket QR code at issuance.
type TicketQRPayload struct {
	TicketNumber      string    `json:"ticketNumber"`
	VerificationToken string    `json:"verificationToken"`
	Name              string    `json:"name"`
	Surname           string    `json:"surname"`
	Email             string    `json:"email"`
	Quantity          int       `json:"quantity"`
	Event             string    `json:"event"`
	Date              string    `json:"date"`
	Venue             string    `json:"venue"`
	IssuedAt          time.Time `json:"issuedAt"`
}
