package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	domainerrors "github.com/davidleathers/transaction-monitor/internal/domain/errors"
)

// Claims are the reviewer token claims. Subject names the reviewer.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// JWTGuard protects reviewer mutations with HS256 bearer tokens
type JWTGuard struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// NewJWTGuard creates the guard. An empty secret disables it: guarded routes
// are served without authentication and no reviewer identity is known.
func NewJWTGuard(secret, issuer string, logger *zap.Logger) *JWTGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secret == "" {
		logger.Warn("security.jwt_secret is empty, reviewer endpoints are unauthenticated")
	}
	return &JWTGuard{secret: []byte(secret), issuer: issuer, logger: logger}
}

// Enabled reports whether tokens are required
func (g *JWTGuard) Enabled() bool {
	return len(g.secret) > 0
}

// Issue signs a token for subject valid for ttl
func (g *JWTGuard) Issue(subject string, ttl time.Duration) (string, error) {
	if !g.Enabled() {
		return "", errors.New("jwt guard is disabled")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Validate parses and verifies a token
func (g *JWTGuard) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Require wraps a handler that needs an authenticated reviewer
func (g *JWTGuard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			writeUnauthorized(w, "Authorization required")
			return
		}

		claims, err := g.Validate(strings.TrimSpace(token))
		if err != nil {
			g.logger.Debug("rejected bearer token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyActor, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="transaction-monitor"`)
	status, body := mapError(domainerrors.NewUnauthorizedError(message))
	writeJSON(w, status, body)
}
