package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/config"
)

var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated caller behind an admin request.
type Principal struct {
	Subject string
	Email   string
	Roles   []string
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Name is what audit trails record for the principal.
func (p *Principal) Name() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Subject
}

type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// NewVerifier prefers OIDC when an issuer is configured and falls back to HS256 tokens
// signed with the shared admin secret.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	switch {
	case cfg.OIDCIssuer != "":
		provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
		if err != nil {
			return nil, fmt.Errorf("create OIDC provider: %w", err)
		}
		return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{
			ClientID:          cfg.OIDCClientID,
			SkipClientIDCheck: cfg.OIDCClientID == "",
		})}, nil
	case cfg.JWTSecret != "":
		return NewHMACVerifier(cfg.JWTSecret), nil
	default:
		return nil, &apperr.ConfigurationError{Component: "admin auth", Missing: []string{"ADMIN_JWT_SECRET", "OIDC_ISSUER"}}
	}
}

type adminClaims struct {
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access,omitempty"`
	jwt.RegisteredClaims
}

func (c *adminClaims) principal() *Principal {
	return &Principal{
		Subject: c.Subject,
		Email:   c.Email,
		Roles:   append(append([]string{}, c.Roles...), c.RealmAccess.Roles...),
	}
}

type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Principal, error) {
	claims := &adminClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims.principal(), nil
}

// IssueToken signs an HS256 admin token. Used by operators without an identity provider.
func IssueToken(secret, subject, email string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &adminClaims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims := &adminClaims{}
	if err := idToken.Claims(claims); err != nil {
		return nil, fmt.Errorf("%w: parse claims: %v", ErrUnauthorized, err)
	}
	claims.Subject = idToken.Subject
	return claims.principal(), nil
}

// ExtractTokenFromRequest returns the bearer token from the Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}
	return parts[1], nil
}
