package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"aida/internal/domain"
)

// TokenHeader carries the credential; Authorization: Bearer is also accepted.
const TokenHeader = "X-Auth-Token"

// Authenticator resolves the request principal from its token.
type Authenticator struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(v TokenVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{verifier: v, logger: logger.With("component", "auth")}
}

// Middleware rejects requests without a valid token with 401 and stores
// the principal in the request context otherwise.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeUnauthenticated(w, "No token, authorization denied")
			return
		}
		claims, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.logger.Debug("token rejected", "error", err, "request_id", domain.RequestIDFromContext(r.Context()))
			writeUnauthenticated(w, "Token is not valid")
			return
		}
		id := claims.PrincipalID()
		if id == "" {
			writeUnauthenticated(w, "Token is not valid")
			return
		}
		ctx := domain.WithPrincipal(r.Context(), domain.Principal{ID: id, Name: claims.Name})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func writeUnauthenticated(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    http.StatusUnauthorized,
		"kind":    domain.KindUnauthenticated,
		"message": msg,
	})
}
