package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/vdavid/mailmate/internal/logger"
)

// RequireAPIKey returns middleware that checks for "Authorization: Bearer <apiKey>".
// An empty apiKey disables the check. Returns 401 Unauthorized when the key is missing or wrong.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				// Browsers cannot set headers on websocket upgrades.
				token = r.URL.Query().Get("token")
			}

			if token == "" {
				logger.Warn("Auth: No bearer token present")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				logger.Warn("Auth: Invalid API key")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
// The scheme is case-insensitive per RFC 7235.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	fields := strings.Fields(authHeader)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(strings.Join(fields[1:], " "))
	if token == "" {
		return "", false
	}
	return token, true
}
