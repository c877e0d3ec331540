package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxCallers bounds the number of tracked buckets; new callers beyond it are
// rejected until cleanup frees space.
const defaultMaxCallers = 100_000

// RateLimiter applies a token bucket per caller. It must run after Auth: requests
// with claims are keyed by tenant and subject, the rest by client IP.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	maxBuckets int
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*callerBucket
}

type callerBucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows rps sustained requests per second per caller with bursts of burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		maxBuckets: defaultMaxCallers,
		now:        time.Now,
		buckets:    make(map[string]*callerBucket),
	}
}

// Handler is the middleware. Every response carries X-RateLimit-Remaining; rejected
// requests get 429 with Retry-After in whole seconds.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, wait, ok := rl.allow(clientKey(r))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow takes one token from key's bucket. When none is available it reports how
// long until one is, without consuming anything.
func (rl *RateLimiter) allow(key string) (remaining int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		if len(rl.buckets) >= rl.maxBuckets {
			return 0, time.Second, false
		}
		b = &callerBucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return 0, time.Second, false
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return 0, d, false
	}
	return int(b.lim.TokensAt(now)), 0, true
}

// StartCleanup drops buckets idle for longer than maxIdle every interval until the
// returned cancel func is called.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for k, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// Len reports how many callers are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func clientKey(r *http.Request) string {
	if c, ok := ClaimsFromContext(r.Context()); ok && c.Valid() {
		return "claims:" + c.TenantID + "/" + c.Subject
	}
	// Forwarding headers are client-controlled and ignored here.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
