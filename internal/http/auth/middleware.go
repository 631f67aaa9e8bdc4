package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// Guard checks HS256 bearer tokens. A Guard without a secret lets every
// request through.
type Guard struct {
	secret []byte
	issuer string
}

func NewGuard(secret, issuer string) *Guard {
	return &Guard{secret: []byte(secret), issuer: issuer}
}

// Enabled reports whether requests are checked.
func (g *Guard) Enabled() bool {
	return len(g.secret) > 0
}

func (g *Guard) Require(next http.Handler) http.Handler {
	if !g.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.validate(r)
		if err != nil {
			slog.Warn("rejected request", "path", r.URL.Path, "error", err)
			unauthorized(w)

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
	})
}

func (g *Guard) validate(r *http.Request) (*jwt.RegisteredClaims, error) {
	header := r.Header.Get("Authorization")

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}

	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	claims := &jwt.RegisteredClaims{}

	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...); err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	return claims, nil
}

// Subject returns the subject of the token that authorized the request.
func Subject(ctx context.Context) string {
	claims, ok := ctx.Value(contextKey{}).(*jwt.RegisteredClaims)
	if !ok {
		return ""
	}

	return claims.Subject
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "Authentication required",
	})
}
