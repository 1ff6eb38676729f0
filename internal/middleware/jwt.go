// Package middleware holds the HTTP middleware shared by every route:
// token verification, request ids, and rate limiting.
package middleware

import (
	"context"
	"fmt"
	"strconv"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified content of a bearer token.
type Claims struct {
	Subject string
	Issuer  string
	Name    string
	Raw     map[string]any
}

// PrincipalID returns the actor id: the "sub" claim, or the legacy
// {"user": {"id": ...}} claim when sub is absent.
func (c *Claims) PrincipalID() string {
	if c.Subject != "" {
		return c.Subject
	}
	user, ok := c.Raw["user"].(map[string]any)
	if !ok {
		return ""
	}
	switch id := user["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// TokenVerifier checks a raw token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// HS256Verifier checks tokens signed with a shared secret.
type HS256Verifier struct {
	secret []byte
}

var _ TokenVerifier = (*HS256Verifier)(nil)

// NewHS256Verifier creates a verifier for secret.
func NewHS256Verifier(secret string) (*HS256Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &HS256Verifier{secret: []byte(secret)}, nil
}

// Verify parses token, checking signature and expiry.
func (v *HS256Verifier) Verify(_ context.Context, token string) (*Claims, error) {
	tok, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unsupported claims type %T", tok.Claims)
	}
	c := &Claims{Raw: raw}
	c.Subject, _ = raw["sub"].(string)
	c.Issuer, _ = raw["iss"].(string)
	c.Name = displayName(raw)
	return c, nil
}

// OIDCVerifier checks tokens against an issuer's JWKS.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

var _ TokenVerifier = (*OIDCVerifier)(nil)

// NewOIDCVerifier runs issuer discovery and returns a verifier that
// requires audience.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", issuerURL, err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{ClientID: audience})}, nil
}

// Verify validates token with the provider's keys.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	idTok, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}
	var raw map[string]any
	if err := idTok.Claims(&raw); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return &Claims{Subject: idTok.Subject, Issuer: idTok.Issuer, Name: displayName(raw), Raw: raw}, nil
}

func displayName(raw map[string]any) string {
	for _, k := range []string{"name", "email", "preferred_username"} {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
