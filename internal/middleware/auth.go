package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/preventia/studio-api/internal/pkg/jwt"
	"github.com/preventia/studio-api/internal/pkg/response"
)

type contextKey string

const claimsKey contextKey = "claims"

// RevocationChecker reports whether a token id has been revoked by sign-out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Auth returns middleware that validates the bearer JWT and rejects revoked
// sessions. A nil checker skips the revocation lookup (development without Redis).
func Auth(jwtService *jwt.Service, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				if err == jwt.ErrExpiredToken {
					response.Unauthorized(w, "Token expired")
				} else {
					response.Unauthorized(w, "Invalid token")
				}
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					response.InternalError(w)
					return
				}
				if revoked {
					response.Unauthorized(w, "Session has been signed out")
					return
				}
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims extracts the full token claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(claimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) uuid.UUID {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}

// GetRole extracts role from context
func GetRole(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Role
	}
	return ""
}

// RequireAdmin returns middleware that requires the admin role
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetRole(r.Context()) != "admin" {
				response.Forbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
