package middleware

import (
	"log/slog"
	"net/http"
)

// RequireScope rejects API-key requests whose key lacks scope with 403.
// Bearer-token requests carry no scopes and are passed through; the service
// layer still filters their rows by tenant and owner.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKeyFromContext(r.Context())
			if key != nil && !key.HasScope(scope) {
				slog.WarnContext(r.Context(), "api key scope denied",
					"key_prefix", key.Prefix, "tenant_id", key.TenantID, "scope", scope)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"api key lacks scope ` + scope + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
