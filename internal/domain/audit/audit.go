// Package audit defines the append-only audit trail of mutations.
package audit

import (
	"encoding/json"
	"time"
)

// Actions recorded in the audit log.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entry is one audited mutation.
type Entry struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Entity    string          `json:"entity"`
	EntityID  string          `json:"entity_id"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
