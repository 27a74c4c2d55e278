package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ownerRole is the role claim an owner token must carry.
const ownerRole = "owner"

// RequireOwner guards the owner-only configuration endpoints. Tokens are
// HS256-signed bearer JWTs carrying role=owner; everything else is a 401.
func RequireOwner(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}
			if err := validateOwnerToken(token, signingKey); err != nil {
				logger.WarnContext(r.Context(), "owner auth rejected",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validateOwnerToken(token string, signingKey []byte) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("unexpected claims type")
	}
	if role, _ := claims["role"].(string); role != ownerRole {
		return fmt.Errorf("token lacks owner role")
	}
	return nil
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description)
}
