// Package payment talks to the hosted-checkout payment gateway.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
)

const maxErrorBody = 2048

type LineItem struct {
	DisplayName    string         `json:"displayName"`
	Quantity       int            `json:"quantity"`
	PricingDetails PricingDetails `json:"pricingDetails"`
}

type PricingDetails struct {
	Price int64 `json:"price"`
}

// SessionRequest describes one checkout. RecordID identifies the order or ticket and seeds
// the idempotency key.
type SessionRequest struct {
	RecordID   string
	Amount     int64
	Subtotal   int64
	Discount   int64
	CancelURL  string
	SuccessURL string
	FailureURL string
	Metadata   map[string]string
	LineItems  []LineItem
}

type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
}

type createCheckoutBody struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	CancelURL      string            `json:"cancelUrl"`
	SuccessURL     string            `json:"successUrl"`
	FailureURL     string            `json:"failureUrl"`
	Metadata       map[string]string `json:"metadata"`
	LineItems      []LineItem        `json:"lineItems"`
	SubtotalAmount int64             `json:"subtotalAmount"`
	TotalTaxAmount int64             `json:"totalTaxAmount"`
	TotalDiscount  int64             `json:"totalDiscount"`
}

// CheckoutClient creates hosted checkout sessions.
type CheckoutClient struct {
	cfg    config.GatewayConfig
	client *http.Client
	logger *logger.Logger
	now    func() time.Time

	// retryBase is the first backoff; each retry doubles it.
	retryBase time.Duration
}

func NewCheckoutClient(cfg config.GatewayConfig, client *http.Client, log *logger.Logger) *CheckoutClient {
	if client == nil {
		client = &http.Client{}
	}
	return &CheckoutClient{
		cfg:    cfg,
		client: client,
		logger: log,
		now:    time.Now,

		retryBase: 250 * time.Millisecond,
	}
}

// Configured returns a ConfigurationError when credentials are missing.
func (c *CheckoutClient) Configured() error {
	return c.cfg.Validate()
}

// IdempotencyKey is derived from the owning record and the time of the attempt. Retries of
// one CreateSession call reuse the same key.
func IdempotencyKey(recordID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", recordID, at.UnixMilli())
}

// CreateSession posts a checkout to the gateway. Transport failures and 5xx answers are
// retried with the same idempotency key; any other non-2xx is returned immediately.
func (c *CheckoutClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := c.Configured(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(createCheckoutBody{
		Amount:         req.Amount,
		Currency:       c.cfg.Currency,
		CancelURL:      req.CancelURL,
		SuccessURL:     req.SuccessURL,
		FailureURL:     req.FailureURL,
		Metadata:       req.Metadata,
		LineItems:      req.LineItems,
		SubtotalAmount: req.Subtotal,
		TotalTaxAmount: 0,
		TotalDiscount:  req.Discount,
	})
	if err != nil {
		return nil, fmt.Errorf("encode checkout request: %w", err)
	}

	key := IdempotencyKey(req.RecordID, c.now())
	attempts := c.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		session, err := c.post(ctx, body, key)
		if err == nil {
			c.logger.Info("PAYMENT", fmt.Sprintf("Checkout %s created for %s (attempt %d)", session.ID, req.RecordID, attempt))
			return session, nil
		}
		lastErr = err

		var gwErr *apperr.GatewayError
		retryable := errors.As(err, &gwErr) && (gwErr.StatusCode == 0 || gwErr.StatusCode >= 500)
		if !retryable || attempt == attempts || ctx.Err() != nil {
			break
		}

		backoff := time.Duration(1<<(attempt-1)) * c.retryBase
		c.logger.Warn("PAYMENT", fmt.Sprintf("Checkout attempt %d for %s failed: %v; retrying in %s", attempt, req.RecordID, err, backoff))
		if !wait(ctx, backoff) {
			break
		}
	}

	c.logger.Error("PAYMENT", fmt.Sprintf("Checkout creation failed for %s: %v", req.RecordID, lastErr))
	return nil, lastErr
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *CheckoutClient) post(ctx context.Context, body []byte, idempotencyKey string) (*Session, error) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/checkouts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &apperr.GatewayError{Err: err}
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Error("PAYMENT", fmt.Sprintf("Failed to close gateway response body: %v", err))
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &apperr.GatewayError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := raw
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &apperr.GatewayError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, &apperr.GatewayError{StatusCode: resp.StatusCode, Body: "invalid response body", Err: err}
	}
	if session.ID == "" || session.RedirectURL == "" {
		return nil, &apperr.GatewayError{StatusCode: resp.StatusCode, Body: "response missing id or redirectUrl"}
	}
	return &session, nil
}

// ProductLines builds the line items for a checkout: the product always, delivery only when
// it costs something.
func ProductLines(productName string, quantity int, unitAmount int64, deliveryLabel string, deliveryFee int64) []LineItem {
	items := []LineItem{{
		DisplayName:    productName,
		Quantity:       quantity,
		PricingDetails: PricingDetails{Price: unitAmount},
	}}
	if deliveryFee > 0 {
		items = append(items, LineItem{
			DisplayName:    deliveryLabel,
			Quantity:       1,
			PricingDetails: PricingDetails{Price: deliveryFee},
		})
	}
	return items
}
