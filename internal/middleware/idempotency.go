package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/flourisha/brain/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// idempotencyEntry stores a cached HTTP response.
type idempotencyEntry struct {
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// Idempotency returns middleware that deduplicates POST/PUT/PATCH/DELETE requests
// carrying an Idempotency-Key header. Keys are scoped to the caller's claims, method and
// path, so two callers reusing a key never see each other's responses. Only non-5xx
// responses are remembered.
func Idempotency(store cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			raw := r.Header.Get(headerIdempotencyKey)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			key := idempotencyStoreKey(r, raw)

			data, found, err := store.Get(r.Context(), key)
			if err != nil {
				slog.WarnContext(r.Context(), "idempotency: lookup failed", "error", err)
			}
			if found {
				var cached idempotencyEntry
				if err := json.Unmarshal(data, &cached); err == nil {
					for k, vals := range cached.Headers {
						for _, v := range vals {
							w.Header().Add(k, v)
						}
					}
					w.Header().Set(headerReplayed, "true")
					w.WriteHeader(cached.StatusCode)
					_, _ = w.Write(cached.Body)
					return
				}
				slog.WarnContext(r.Context(), "idempotency: corrupt cache entry", "key", raw)
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				return
			}
			cached := idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			}
			payload, marshalErr := json.Marshal(cached)
			if marshalErr != nil {
				return
			}
			if putErr := store.Set(r.Context(), key, payload, ttl); putErr != nil {
				slog.WarnContext(r.Context(), "idempotency: failed to store response", "key", raw, "error", putErr)
			}
		})
	}
}

// idempotencyStoreKey hashes the caller identity and request line with the client key.
// The hex digest is a valid NATS KV key regardless of what the client sent.
func idempotencyStoreKey(r *http.Request, raw string) string {
	h := sha256.New()
	if c, ok := ClaimsFromContext(r.Context()); ok {
		h.Write([]byte(c.TenantID + "\x00" + c.Subject + "\x00"))
	}
	h.Write([]byte(r.Method + "\x00" + r.URL.Path + "\x00" + raw))
	return cache.Key("idem", hex.EncodeToString(h.Sum(nil)))
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
