package mcp

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware guards the MCP endpoint with the deployment's API key, read from
// apiKey on every request so a reloaded secret applies without a restart. The key may
// be sent as a bearer token or as the bare Authorization value. A nil source or an
// empty key leaves the endpoint open.
func AuthMiddleware(apiKey func() string, next http.Handler) http.Handler {
	if apiKey == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := apiKey()
		if want == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="flourisha-mcp"`)
			writeAuthError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			slog.WarnContext(r.Context(), "mcp api key rejected", "remote_addr", r.RemoteAddr)
			writeAuthError(w, http.StatusForbidden, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
