package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"signagehub/internal/httputil"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// StaffIDKey is the context key for the authenticated staff member's ID
	StaffIDKey contextKey = "staff_id"
)

// StaffAuth validates the HS256 staff token issued by the CMS.
// Checks the Authorization header first, then falls back to the access_token cookie.
func StaffAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				if cookie, err := r.Cookie("access_token"); err == nil {
					tokenString = cookie.Value
				}
			}
			if tokenString == "" {
				httputil.WriteError(w, http.StatusUnauthorized, httputil.ErrCodeUnauthorized, "missing authentication token")
				return
			}

			claims := &jwt.RegisteredClaims{}
			_, err := jwt.ParseWithClaims(tokenString, claims,
				func(*jwt.Token) (interface{}, error) { return []byte(jwtSecret), nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					httputil.WriteError(w, http.StatusUnauthorized, httputil.ErrCodeTokenExpired, "access token has expired")
					return
				}
				httputil.WriteError(w, http.StatusUnauthorized, httputil.ErrCodeUnauthorized, "invalid authentication token")
				return
			}
			if claims.Subject == "" {
				httputil.WriteError(w, http.StatusUnauthorized, httputil.ErrCodeUnauthorized, "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), StaffIDKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetStaffIDFromContext extracts the staff ID set by StaffAuth
func GetStaffIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(StaffIDKey).(string)
	return id, ok
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
