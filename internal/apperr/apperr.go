// Package apperr holds the error taxonomy shared by the storefront services and the
// mapping from those errors to HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ValidationError carries one message per offending input field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a field message and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// OrNil returns nil when no field failed, so callers can `return v.OrNil()`.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// GatewayError is returned when the payment gateway answers non-2xx or cannot be reached.
// StatusCode is zero for transport failures.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment gateway unreachable: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ConfigurationError reports missing or unusable settings for a dependency.
type ConfigurationError struct {
	Component string
	Missing   []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured (missing %s)", e.Component, strings.Join(e.Missing, ", "))
}

// Store wraps err as a StoreError unless it is already part of the taxonomy.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTyped(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsTyped reports whether err already belongs to the taxonomy.
func IsTyped(err error) bool {
	var (
		v *ValidationError
		n *NotFoundError
		g *GatewayError
		s *StoreError
		c *ConfigurationError
	)
	return errors.As(err, &v) || errors.As(err, &n) || errors.As(err, &g) || errors.As(err, &s) || errors.As(err, &c)
}

func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	var (
		v *ValidationError
		n *NotFoundError
		g *GatewayError
		c *ConfigurationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &n):
		return http.StatusNotFound
	case errors.As(err, &g):
		return http.StatusBadGateway
	case errors.As(err, &c):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the client-safe message for err. Internal causes never leak.
func PublicMessage(err error) string {
	var (
		v *ValidationError
		n *NotFoundError
		g *GatewayError
		c *ConfigurationError
	)
	switch {
	case errors.As(err, &v):
		return "Please correct the highlighted fields"
	case errors.As(err, &n):
		return "Not found"
	case errors.As(err, &g):
		return "We could not start the payment. Please try again or contact support"
	case errors.As(err, &c):
		return "This service is temporarily unavailable"
	default:
		return "Something went wrong. Please try again later"
	}
}

// FieldErrors returns the per-field messages of a ValidationError, or nil.
func FieldErrors(err error) map[string]string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Fields
	}
	return nil
}
