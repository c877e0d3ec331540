// Package okr models objectives and key results. Each KeyResult row is a flattened
// objective×key-result record: objective metadata is repeated on every key result and an
// objective is the group of rows sharing (tenant_id, quarter, objective_id).
package okr

import (
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// Status is the lifecycle state of a key result. Transitions are unconstrained.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAtRisk     Status = "at_risk"
	StatusPaused     Status = "paused"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusAtRisk, StatusPaused:
		return true
	}
	return false
}

// Visibility controls who may see a key result. The zero value is the legacy
// (NULL) visibility, which falls back to tenant-based access.
type Visibility string

const (
	VisibilityLegacy    Visibility = ""
	VisibilityPersonal  Visibility = "personal"
	VisibilityWorkspace Visibility = "workspace"
)

// Valid reports whether v is personal, workspace or legacy.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityLegacy, VisibilityPersonal, VisibilityWorkspace:
		return true
	}
	return false
}

// Key identifies a key result. objective_id is unique only within tenant+quarter.
type Key struct {
	TenantID    string `json:"tenant_id"`
	Quarter     string `json:"quarter"`
	ObjectiveID string `json:"objective_id"`
	KeyResultID string `json:"key_result_id"`
}

// Validate checks that every component of the key is set.
func (k Key) Validate() error {
	switch {
	case k.TenantID == "":
		return fmt.Errorf("tenant_id is required: %w", domain.ErrValidation)
	case k.Quarter == "":
		return fmt.Errorf("quarter is required: %w", domain.ErrValidation)
	case k.ObjectiveID == "":
		return fmt.Errorf("objective_id is required: %w", domain.ErrValidation)
	case k.KeyResultID == "":
		return fmt.Errorf("key_result_id is required: %w", domain.ErrValidation)
	}
	return nil
}

// String renders the key for logs and cache keys.
func (k Key) String() string {
	return k.TenantID + "/" + k.Quarter + "/" + k.ObjectiveID + "/" + k.KeyResultID
}

// KeyResult is one measurable result under an objective.
type KeyResult struct {
	ID string `json:"id"`
	Key

	ObjectiveTitle       string     `json:"objective_title"`
	ObjectiveDescription string     `json:"objective_description,omitempty"`
	Owner                string     `json:"owner,omitempty"`
	TargetCompletionDate *time.Time `json:"target_completion_date,omitempty"`
	Visibility           Visibility `json:"visibility,omitempty"`
	UserID               string     `json:"user_id,omitempty"`
	WorkspaceID          string     `json:"workspace_id,omitempty"`
	Priority             int        `json:"priority"`
	Department           string     `json:"department,omitempty"`

	KeyResultTitle string    `json:"key_result_title"`
	Target         float64   `json:"key_result_target"`
	Current        float64   `json:"key_result_current"`
	Unit           string    `json:"key_result_unit,omitempty"`
	Status         Status    `json:"status"`
	LastUpdated    time.Time `json:"last_updated"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProgressPercent returns the key result's completion percentage.
func (k *KeyResult) ProgressPercent() float64 {
	return ProgressPercent(k.Current, k.Target)
}

// ProgressPercent returns min(100, current/target*100) when target > 0, otherwise 0.
func ProgressPercent(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	pct := current / target * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Filter narrows key-result listings. Empty fields do not filter.
type Filter struct {
	TenantID    string `json:"tenant_id,omitempty"`
	Quarter     string `json:"quarter,omitempty"`
	ObjectiveID string `json:"objective_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Status      Status `json:"status,omitempty"`
}

// Match reports whether k satisfies every set field of f.
func (f Filter) Match(k *KeyResult) bool {
	if f.TenantID != "" && k.TenantID != f.TenantID {
		return false
	}
	if f.Quarter != "" && k.Quarter != f.Quarter {
		return false
	}
	if f.ObjectiveID != "" && k.ObjectiveID != f.ObjectiveID {
		return false
	}
	if f.UserID != "" && k.UserID != f.UserID {
		return false
	}
	if f.Status != "" && k.Status != f.Status {
		return false
	}
	return true
}
