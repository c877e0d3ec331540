package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/apikey"
	"github.com/flourisha/brain/internal/logger"
)

type claimsCtxKey struct{}
type apiKeyCtxKey struct{}

// ErrUnauthenticated is returned by an Authenticator when credentials are missing or bad.
var ErrUnauthenticated = errors.New("unauthenticated")

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
}

// Authenticator turns presented credentials into verified caller claims.
type Authenticator interface {
	VerifyToken(token string) (access.Claims, error)
	VerifyAPIKey(ctx context.Context, plainKey string) (access.Claims, *apikey.APIKey, error)
}

// Auth returns middleware that validates bearer tokens or API keys and stores the
// resulting claims in the request context. When authEnabled is false, dev claims are
// injected for every request.
func Auth(authn Authenticator, authEnabled bool, dev access.Claims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), dev)))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// Browsers cannot set headers on a websocket upgrade.
			if r.URL.Path == "/ws" {
				tokenParam := r.URL.Query().Get("token")
				if tokenParam == "" {
					http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
					return
				}
				claims, err := authn.VerifyToken(tokenParam)
				if err != nil {
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}

			if plain := r.Header.Get("X-API-Key"); plain != "" {
				claims, key, err := authn.VerifyAPIKey(r.Context(), plain)
				if err != nil {
					http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
					return
				}
				ctx := WithClaims(r.Context(), claims)
				ctx = context.WithValue(ctx, apiKeyCtxKey{}, key)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				http.Error(w, `{"error":"invalid authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := authn.VerifyToken(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims stores verified claims in ctx and tags the context for log correlation.
func WithClaims(ctx context.Context, c access.Claims) context.Context {
	ctx = logger.WithIdentity(ctx, c.TenantID, c.Subject)
	return context.WithValue(ctx, claimsCtxKey{}, c)
}

// ClaimsFromContext returns the caller's claims and whether any were set.
func ClaimsFromContext(ctx context.Context) (access.Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey{}).(access.Claims)
	return c, ok
}

// APIKeyFromContext returns the API key used for authentication, or nil for token auth.
func APIKeyFromContext(ctx context.Context) *apikey.APIKey {
	key, _ := ctx.Value(apiKeyCtxKey{}).(*apikey.APIKey)
	return key
}
