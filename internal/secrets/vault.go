// Package secrets holds rotating credentials (the JWT signing key, the MCP API key) that
// can be reloaded on SIGHUP without restarting the server.
package secrets

import (
	"fmt"
	"log/slog"
	"sync"
)

// Loader reads the current secret values from a source.
type Loader func() (map[string]string, error)

// Vault caches secret values and swaps them atomically on Reload.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault populates a Vault from loader.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{values: vals, loader: loader}, nil
}

// Get returns the secret for key, or "".
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Source binds key to a getter for consumers that only need one secret.
func (v *Vault) Source(key string) func() string {
	return func() string { return v.Get(key) }
}

// Reload re-reads every secret. On error the previous values stay in place.
func (v *Vault) Reload() error {
	vals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = vals
	v.mu.Unlock()
	slog.Info("secrets reloaded", "count", len(vals))
	return nil
}

// Chain merges loaders in order; later loaders override earlier ones.
func Chain(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string)
		for _, l := range loaders {
			vals, err := l()
			if err != nil {
				return nil, err
			}
			for k, val := range vals {
				out[k] = val
			}
		}
		return out, nil
	}
}
