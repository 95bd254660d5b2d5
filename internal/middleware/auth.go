package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"lprserver/internal/logger"
)

// APIKeyHeader carries the key on protected requests.
const APIKeyHeader = "X-API-Key"

// AuthMiddleware requires the API key on requests that change state: writes
// to /authorized, clearing reads and clearing logs. An empty key disables the
// check entirely.
func AuthMiddleware(apiKey string, logger *logger.Logger, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requiresKey(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			logger.Warning("Rejected %s %s from %s: missing or wrong API key", r.Method, r.URL.Path, r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requiresKey(r *http.Request) bool {
	path := r.URL.Path

	switch {
	case path == "/authorized" || strings.HasPrefix(path, "/authorized/"):
		return r.Method != http.MethodGet && r.Method != http.MethodHead
	case path == "/api/reads":
		return r.Method == http.MethodDelete
	case strings.HasPrefix(path, "/logs/") && strings.HasSuffix(path, "/clear"):
		return true
	}
	return false
}
