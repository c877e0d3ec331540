// Package tenant defines the tenant registry model. Every other record is scoped by a tenant ID.
package tenant

import (
	"fmt"
	"regexp"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// Tenant represents an isolated customer or organization boundary.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// Validate checks that the request has a name and a URL-safe slug.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if !slugPattern.MatchString(r.Slug) {
		return fmt.Errorf("slug %q must be lowercase alphanumeric with dashes: %w", r.Slug, domain.ErrValidation)
	}
	return nil
}
