package okr

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// DefaultTagColor is the mid-gray used when a tag is created without a color.
const DefaultTagColor = "#6B7280"

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Tag labels key results. A tag is personal (UserID set) or workspace-scoped
// (WorkspaceID set). TenantID is kept for legacy tenant-based fallback.
type Tag struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Personal reports whether the tag is scoped to a single user.
func (t *Tag) Personal() bool { return t.UserID != "" }

// TagScope names the owner of a tag: exactly one of UserID or WorkspaceID.
type TagScope struct {
	UserID      string `json:"user_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// Validate enforces that exactly one owner is set.
func (s TagScope) Validate() error {
	if (s.UserID == "") == (s.WorkspaceID == "") {
		return fmt.Errorf("exactly one of user_id or workspace_id is required: %w", domain.ErrValidation)
	}
	return nil
}

// CreateTagRequest is the input for creating a tag.
type CreateTagRequest struct {
	TagScope
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Validate checks scope, name and color, filling in the default color.
func (r *CreateTagRequest) Validate() error {
	if err := r.TagScope.Validate(); err != nil {
		return err
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if r.Color == "" {
		r.Color = DefaultTagColor
	}
	if !colorPattern.MatchString(r.Color) {
		return fmt.Errorf("color %q must be #RRGGBB: %w", r.Color, domain.ErrValidation)
	}
	return nil
}

// TagAssignment links a tag to a key-result row. The (OKRID, TagID) pair is unique.
type TagAssignment struct {
	OKRID     string    `json:"okr_id"`
	TagID     string    `json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}
