package http

import (
	"context"
	"sync"

	"github.com/flourisha/brain/internal/domain/access"
)

type claimsHolderKey struct{}

// claimsHolder carries claims set deep in the chain back up to the access log.
type claimsHolder struct {
	mu sync.Mutex
	c  access.Claims
	ok bool
}

func withClaimsHolder(ctx context.Context, h *claimsHolder) context.Context {
	return context.WithValue(ctx, claimsHolderKey{}, h)
}

func claimsHolderFrom(ctx context.Context) *claimsHolder {
	h, _ := ctx.Value(claimsHolderKey{}).(*claimsHolder)
	return h
}

func (h *claimsHolder) set(c access.Claims) {
	h.mu.Lock()
	h.c, h.ok = c, true
	h.mu.Unlock()
}

func (h *claimsHolder) get() (access.Claims, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.c, h.ok
}
