// Package access expresses row-level security as predicates over caller claims.
// Reads filter rows silently; writes that fail a predicate are rejected with
// domain.ErrForbidden before reaching storage.
package access

import (
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/domain/okr"
)

// Claims identify the caller. They are verified upstream (JWT or API key).
type Claims struct {
	TenantID string `json:"tenant_id"`
	Subject  string `json:"sub"`
}

// Valid reports whether both tenant and subject are present.
func (c Claims) Valid() bool {
	return c.TenantID != "" && c.Subject != ""
}

// --- Energy readings ---

// CanReadEnergy allows any member of the reading's tenant.
func CanReadEnergy(r *energy.Reading, c Claims) bool {
	return r.TenantID == c.TenantID
}

// CanInsertEnergy requires the tenant to match and the reading to belong to the caller.
func CanInsertEnergy(r *energy.Reading, c Claims) bool {
	return r.TenantID == c.TenantID && r.UserID == c.Subject
}

// CanUpdateEnergy allows only the reading's author within its tenant.
func CanUpdateEnergy(r *energy.Reading, c Claims) bool {
	return r.TenantID == c.TenantID && r.UserID == c.Subject
}

// --- Key results ---

// CanReadKeyResult is the three-way visibility rule: personal rows are visible to their
// user in any tenant, workspace rows to their tenant, and legacy rows (no visibility)
// to their tenant.
func CanReadKeyResult(k *okr.KeyResult, c Claims) bool {
	switch k.Visibility {
	case okr.VisibilityPersonal:
		return k.UserID != "" && k.UserID == c.Subject
	case okr.VisibilityWorkspace:
		return k.TenantID == c.TenantID
	case okr.VisibilityLegacy:
		return k.TenantID == c.TenantID
	}
	return false
}

// CanInsertKeyResult follows the read rule.
func CanInsertKeyResult(k *okr.KeyResult, c Claims) bool {
	return CanReadKeyResult(k, c)
}

// CanUpdateKeyResult follows the read rule.
func CanUpdateKeyResult(k *okr.KeyResult, c Claims) bool {
	return CanReadKeyResult(k, c)
}

// --- Records hanging off key results ---

// CanReadHistory allows reading a history entry iff its key result is readable.
func CanReadHistory(parent *okr.KeyResult, c Claims) bool {
	return CanReadKeyResult(parent, c)
}

// CanReadTagAssignment allows reading an assignment iff its key result is readable.
func CanReadTagAssignment(parent *okr.KeyResult, c Claims) bool {
	return CanReadKeyResult(parent, c)
}

// CanWriteTagAssignment requires write access to the key result and use of the tag.
func CanWriteTagAssignment(parent *okr.KeyResult, t *okr.Tag, c Claims) bool {
	return CanUpdateKeyResult(parent, c) && CanUseTag(t, c)
}

// CanUseTag allows personal tags to their user and workspace tags to members of the
// workspace; a workspace is identified with its tenant. Tags carrying only a tenant fall
// back to tenant membership.
func CanUseTag(t *okr.Tag, c Claims) bool {
	switch {
	case t.UserID != "":
		return t.UserID == c.Subject
	case t.WorkspaceID != "":
		return t.WorkspaceID == c.TenantID
	default:
		return t.TenantID != "" && t.TenantID == c.TenantID
	}
}

// CanCreateTag allows creating personal tags for oneself and workspace tags for one's own
// workspace.
func CanCreateTag(s okr.TagScope, c Claims) bool {
	if s.UserID != "" {
		return s.UserID == c.Subject
	}
	return s.WorkspaceID == c.TenantID
}

// Filter returns the rows of in that pred allows, preserving order.
func Filter[T any](in []T, c Claims, pred func(*T, Claims) bool) []T {
	out := make([]T, 0, len(in))
	for i := range in {
		if pred(&in[i], c) {
			out = append(out, in[i])
		}
	}
	return out
}
