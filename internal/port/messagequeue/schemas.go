package messagequeue

import "time"

// Audience scopes an event to the clients allowed to see it: every member of the tenant,
// or only UserID when set (personal key results).
type Audience struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"audience_user_id,omitempty"`
}

// EnergyRecordedPayload is the schema for flourisha.energy.recorded messages.
type EnergyRecordedPayload struct {
	Audience
	ReadingID    string    `json:"reading_id"`
	UserID       string    `json:"user_id"`
	EnergyLevel  int       `json:"energy_level"`
	FocusQuality string    `json:"focus_quality"`
	Timestamp    time.Time `json:"timestamp"`
}

// OKRProgressPayload is the schema for flourisha.okr.progress messages.
type OKRProgressPayload struct {
	Audience
	KeyResultID   string   `json:"key_result_id"`
	Quarter       string   `json:"quarter"`
	ObjectiveID   string   `json:"objective_id"`
	ChangeType    string   `json:"change_type"`
	PreviousValue *float64 `json:"previous_value"`
	NewValue      float64  `json:"new_value"`
	ProgressPct   float64  `json:"progress_pct"`
	Status        string   `json:"status"`
}

// OKRTaggedPayload is the schema for flourisha.okr.tagged messages.
type OKRTaggedPayload struct {
	Audience
	KeyResultID string `json:"key_result_id"`
	TagID       string `json:"tag_id"`
	Assigned    bool   `json:"assigned"`
}

// ExtractionFeedbackPayload is the schema for flourisha.extraction.feedback messages.
type ExtractionFeedbackPayload struct {
	Audience
	FeedbackID     string `json:"feedback_id"`
	DocumentID     string `json:"document_id"`
	FieldName      string `json:"field_name"`
	CorrectionType string `json:"correction_type"`
}

// ExtractionValidationPayload is the schema for flourisha.extraction.validation messages.
type ExtractionValidationPayload struct {
	Audience
	DocumentID string `json:"document_id"`
	RuleID     string `json:"rule_id"`
	Passed     bool   `json:"passed"`
}
