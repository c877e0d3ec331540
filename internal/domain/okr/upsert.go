package okr

import (
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain"
)

// UpsertRequest creates or updates the key result identified by Key. On update, nil
// pointers and empty strings leave the stored value unchanged.
type UpsertRequest struct {
	Key

	ObjectiveTitle       string      `json:"objective_title,omitempty"`
	ObjectiveDescription *string     `json:"objective_description,omitempty"`
	Owner                *string     `json:"owner,omitempty"`
	TargetCompletionDate *time.Time  `json:"target_completion_date,omitempty"`
	Visibility           *Visibility `json:"visibility,omitempty"`
	UserID               *string     `json:"user_id,omitempty"`
	WorkspaceID          *string     `json:"workspace_id,omitempty"`
	Priority             *int        `json:"priority,omitempty"`
	Department           *string     `json:"department,omitempty"`

	KeyResultTitle string   `json:"key_result_title,omitempty"`
	Target         *float64 `json:"key_result_target,omitempty"`
	Current        *float64 `json:"key_result_current,omitempty"`
	Unit           *string  `json:"key_result_unit,omitempty"`
	Status         *Status  `json:"status,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Merge applies req on top of prev (nil when the key result does not exist yet) and
// returns the row to persist. LastUpdated is set to now; CreatedAt is kept from prev.
func Merge(prev *KeyResult, req *UpsertRequest, now time.Time) (KeyResult, error) {
	if err := req.Key.Validate(); err != nil {
		return KeyResult{}, err
	}

	var next KeyResult
	if prev != nil {
		next = *prev
	} else {
		if req.Target == nil {
			return KeyResult{}, fmt.Errorf("key_result_target is required: %w", domain.ErrValidation)
		}
		next = KeyResult{Key: req.Key, Status: StatusNotStarted, CreatedAt: now}
	}

	if req.ObjectiveTitle != "" {
		next.ObjectiveTitle = req.ObjectiveTitle
	}
	if req.KeyResultTitle != "" {
		next.KeyResultTitle = req.KeyResultTitle
	}
	setIf(&next.ObjectiveDescription, req.ObjectiveDescription)
	setIf(&next.Owner, req.Owner)
	setIf(&next.UserID, req.UserID)
	setIf(&next.WorkspaceID, req.WorkspaceID)
	setIf(&next.Priority, req.Priority)
	setIf(&next.Department, req.Department)
	setIf(&next.Target, req.Target)
	setIf(&next.Current, req.Current)
	setIf(&next.Unit, req.Unit)
	setIf(&next.Status, req.Status)
	setIf(&next.Visibility, req.Visibility)
	if req.TargetCompletionDate != nil {
		d := truncateDay(*req.TargetCompletionDate)
		next.TargetCompletionDate = &d
	}
	next.LastUpdated = now

	if err := next.validate(); err != nil {
		return KeyResult{}, err
	}
	return next, nil
}

func (k *KeyResult) validate() error {
	if k.ObjectiveTitle == "" {
		return fmt.Errorf("objective_title is required: %w", domain.ErrValidation)
	}
	if k.KeyResultTitle == "" {
		return fmt.Errorf("key_result_title is required: %w", domain.ErrValidation)
	}
	if !k.Status.Valid() {
		return fmt.Errorf("invalid status %q: %w", k.Status, domain.ErrValidation)
	}
	if !k.Visibility.Valid() {
		return fmt.Errorf("invalid visibility %q: %w", k.Visibility, domain.ErrValidation)
	}
	if k.Visibility == VisibilityPersonal && k.UserID == "" {
		return fmt.Errorf("user_id is required for personal visibility: %w", domain.ErrValidation)
	}
	return nil
}

// ChangeType classifies a progress history entry.
type ChangeType string

const (
	ChangeProgressUpdate ChangeType = "progress_update"
	ChangeStatusChange   ChangeType = "status_change"
	ChangeTargetChange   ChangeType = "target_change"
)

// HistoryEntry is an append-only audit record of a key result's tracked values.
type HistoryEntry struct {
	ID            string     `json:"id"`
	OKRTrackingID string     `json:"okr_tracking_id"`
	PreviousValue *float64   `json:"previous_value"`
	NewValue      float64    `json:"new_value"`
	ChangeType    ChangeType `json:"change_type"`
	Notes         string     `json:"notes,omitempty"`
	RecordedBy    string     `json:"recorded_by"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

// Diff returns the history entry describing the transition from prev to next, or nil when
// neither current, status nor target changed. A newly created key result (prev == nil)
// yields a progress_update with no previous value. When several tracked fields change at
// once, the entry is classified by the first of current, status, target that changed; the
// values always carry the key result's current value before and after.
func Diff(prev *KeyResult, next *KeyResult, recordedBy, notes string, now time.Time) *HistoryEntry {
	e := &HistoryEntry{
		OKRTrackingID: next.ID,
		NewValue:      next.Current,
		Notes:         notes,
		RecordedBy:    recordedBy,
		RecordedAt:    now,
	}
	if prev == nil {
		e.ChangeType = ChangeProgressUpdate
		return e
	}

	prevCurrent := prev.Current
	e.PreviousValue = &prevCurrent
	switch {
	case prev.Current != next.Current:
		e.ChangeType = ChangeProgressUpdate
	case prev.Status != next.Status:
		e.ChangeType = ChangeStatusChange
		if e.Notes == "" {
			e.Notes = fmt.Sprintf("status %s -> %s", prev.Status, next.Status)
		}
	case prev.Target != next.Target:
		e.ChangeType = ChangeTargetChange
		if e.Notes == "" {
			e.Notes = fmt.Sprintf("target %g -> %g", prev.Target, next.Target)
		}
	default:
		return nil
	}
	return e
}

// Mutation computes the row to persist and the history entry to append, given the stored
// row (nil if absent). Stores run it inside the same transaction as the writes.
type Mutation func(prev *KeyResult) (next *KeyResult, entry *HistoryEntry, err error)

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
