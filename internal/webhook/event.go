// Package webhook reconciles asynchronous payment-gateway callbacks with orders and tickets.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	TypePaymentSucceeded = "payment.succeeded"
	TypePaymentFailed    = "payment.failed"
)

// Event is one of PaymentSucceeded, PaymentFailed or Unrecognized.
type Event interface {
	EventType() string
}

// Payment is the part of a gateway event used to find the record it belongs to.
type Payment struct {
	ID         string
	CheckoutID string
	Amount     int64
	Currency   string
	Metadata   map[string]string
}

type PaymentSucceeded struct {
	Payment Payment
}

type PaymentFailed struct {
	Payment Payment
}

type Unrecognized struct {
	Type   string
	Reason string
}

func (PaymentSucceeded) EventType() string { return TypePaymentSucceeded }
func (PaymentFailed) EventType() string    { return TypePaymentFailed }
func (e Unrecognized) EventType() string   { return e.Type }

type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

type paymentBody struct {
	ID         string                 `json:"id"`
	CheckoutID string                 `json:"checkoutId"`
	Amount     json.RawMessage        `json:"amount"`
	Currency   string                 `json:"currency"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Parse validates a webhook body. Only malformed JSON is an error; any well-formed body
// becomes an Event, with unknown or misshapen events reported as Unrecognized.
func Parse(body []byte) (Event, error) {
	if !json.Valid(body) {
		return nil, errors.New("webhook body is not valid JSON")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Unrecognized{Reason: err.Error()}, nil
	}
	if env.Type != TypePaymentSucceeded && env.Type != TypePaymentFailed {
		return Unrecognized{Type: env.Type, Reason: "unhandled type"}, nil
	}

	raw := env.Data
	if len(raw) == 0 || string(raw) == "null" {
		raw = env.Payload
	}
	if len(raw) == 0 || string(raw) == "null" {
		return Unrecognized{Type: env.Type, Reason: "no data"}, nil
	}

	var pb paymentBody
	if err := json.Unmarshal(raw, &pb); err != nil {
		return Unrecognized{Type: env.Type, Reason: err.Error()}, nil
	}
	p := Payment{
		ID:         strings.TrimSpace(pb.ID),
		CheckoutID: strings.TrimSpace(pb.CheckoutID),
		Currency:   pb.Currency,
		Metadata:   flatten(pb.Metadata),
	}
	if p.CheckoutID == "" {
		p.CheckoutID = p.Metadata["checkoutId"]
	}
	if n, err := strconv.ParseInt(strings.Trim(string(pb.Amount), `"`), 10, 64); err == nil {
		p.Amount = n
	}

	if env.Type == TypePaymentSucceeded {
		return PaymentSucceeded{Payment: p}, nil
	}
	return PaymentFailed{Payment: p}, nil
}

// flatten keeps metadata values as strings. Gateways echo back what they were given, but
// numbers and booleans are tolerated.
func flatten(m map[string]interface{}) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = strings.TrimSpace(t)
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
