// Package apikey defines long-lived API keys that resolve to caller claims.
package apikey

import (
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// Prefix is prepended to generated keys for identification.
const Prefix = "flk_"

// Resource-based API key scopes.
const (
	ScopeEnergyRead      = "energy:read"
	ScopeEnergyWrite     = "energy:write"
	ScopeOKRsRead        = "okrs:read"
	ScopeOKRsWrite       = "okrs:write"
	ScopeExtractionRead  = "extraction:read"
	ScopeExtractionWrite = "extraction:write"
	ScopeAdminAll        = "admin:all"
)

// ValidScopes is the set of all valid API key scopes.
var ValidScopes = map[string]bool{
	ScopeEnergyRead:      true,
	ScopeEnergyWrite:     true,
	ScopeOKRsRead:        true,
	ScopeOKRsWrite:       true,
	ScopeExtractionRead:  true,
	ScopeExtractionWrite: true,
	ScopeAdminAll:        true,
}

// APIKey is a stored key bound to one user in one tenant.
type APIKey struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Prefix    string    `json:"prefix"` // leading characters, for display
	KeyHash   string    `json:"-"`      // SHA-256 hex, never serialized
	Scopes    []string  `json:"scopes,omitempty"`
	Revoked   bool      `json:"revoked"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	CreatedAt time.Time `json:"created_at"`
}

// Usable reports whether the key is neither revoked nor expired at now.
func (k *APIKey) Usable(now time.Time) bool {
	if k.Revoked {
		return false
	}
	return k.ExpiresAt.IsZero() || now.Before(k.ExpiresAt)
}

// HasScope checks whether the key grants the required scope. Nil scopes grant everything.
func (k *APIKey) HasScope(required string) bool {
	if k.Scopes == nil {
		return true
	}
	for _, s := range k.Scopes {
		if s == required || s == ScopeAdminAll {
			return true
		}
	}
	return false
}

// CreateRequest is the input for issuing a key.
type CreateRequest struct {
	TenantID  string        `json:"tenant_id"`
	UserID    string        `json:"user_id"`
	Name      string        `json:"name"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"` // 0 = no expiry
	Scopes    []string      `json:"scopes,omitempty"`
}

// Validate checks required fields and scope names.
func (r *CreateRequest) Validate() error {
	if r.TenantID == "" || r.UserID == "" {
		return fmt.Errorf("tenant_id and user_id are required: %w", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	for _, s := range r.Scopes {
		if !ValidScopes[s] {
			return fmt.Errorf("invalid scope %q: %w", s, domain.ErrValidation)
		}
	}
	return nil
}

// Issued is returned once at creation; PlainKey is never stored.
type Issued struct {
	APIKey   APIKey `json:"api_key"`
	PlainKey string `json:"plain_key"`
}
