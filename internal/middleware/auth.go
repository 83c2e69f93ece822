package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Dan9191/coop-lending/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const memberIDKey contextKey = "memberID"

// AuthMiddleware verifies the bearer token and stores the acting member's id
// (the token subject) in the request context
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	secret := []byte(cfg.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := &jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			memberID, err := uuid.Parse(claims.Subject)
			if err != nil {
				http.Error(w, "Invalid token subject", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMemberID(r.Context(), memberID)))
		})
	}
}

// WithMemberID returns a context carrying the acting member's id
func WithMemberID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, memberIDKey, id)
}

// MemberIDFromContext returns the acting member's id, if authenticated
func MemberIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(memberIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
