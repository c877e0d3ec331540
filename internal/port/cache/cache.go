// Package cache defines the byte cache shared by the tenant registry and the
// idempotency store.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores opaque values under flat string keys. A miss is (nil, false, nil);
// errors are reserved for backend failures. Deleting an absent key is not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key joins a namespace and parts with dots. Characters NATS KV rejects in keys
// are replaced with '_' so every adapter accepts the result.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte('.')
		for _, r := range p {
			if keyRune(r) {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
		}
	}
	return b.String()
}

func keyRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '=', r == '/':
		return true
	}
	return false
}
