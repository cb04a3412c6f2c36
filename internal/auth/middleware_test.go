package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
)

const secret = "test-admin-secret"

func protected(v Verifier) http.Handler {
	return Middleware(v, "admin", logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(Actor(r.Context())))
	}))
}

func call(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/o-1", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareAdmitsAdmin(t *testing.T) {
	token, err := IssueToken(secret, "user-1", "ops@shop.test", []string{"admin"}, time.Hour)
	require.NoError(t, err)

	rec := call(protected(NewHMACVerifier(secret)), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@shop.test", rec.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	h := protected(NewHMACVerifier(secret))

	viewer, err := IssueToken(secret, "user-2", "", []string{"viewer"}, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "user-1", "", []string{"admin"}, -time.Minute)
	require.NoError(t, err)
	forged, err := IssueToken("another-secret", "user-1", "", []string{"admin"}, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "roles": []string{"admin"}}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, call(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, expired).Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, forged).Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, none).Code)
	assert.Equal(t, http.StatusForbidden, call(h, viewer).Code)
}

func TestMiddlewareWithoutVerifier(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, call(protected(nil), "anything").Code)
}

func TestRealmRolesAreHonoured(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":          "user-3",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]interface{}{"roles": []string{"ADMIN"}},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	rec := call(protected(NewHMACVerifier(secret)), token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-3", rec.Body.String())
}

func TestNewVerifierNeedsConfiguration(t *testing.T) {
	_, err := NewVerifier(context.Background(), config.AuthConfig{})
	assert.Error(t, err)

	v, err := NewVerifier(context.Background(), config.AuthConfig{JWTSecret: secret})
	require.NoError(t, err)
	assert.IsType(t, &HMACVerifier{}, v)
}

func TestActorDefaultsToAdmin(t *testing.T) {
	assert.Equal(t, "admin", Actor(context.Background()))
}
